package rail

import "golang.org/x/exp/slices"

// IDProvider hands out small positive ids, reusing returned ones lowest first.
// Zero is never handed out so it can mean "none".
type IDProvider struct {
	next uint32
	free []uint32
}

func (p *IDProvider) Get() uint32 {
	if len(p.free) > 0 {
		id := p.free[0]
		p.free = p.free[1:]
		return id
	}
	p.next++
	return p.next
}

// Put returns id to the pool. Returning an id twice, or one never handed out, panics.
func (p *IDProvider) Put(id uint32) {
	if id == 0 || id > p.next {
		panic("IDProvider: id never handed out")
	}
	i, found := slices.BinarySearch(p.free, id)
	if found {
		panic("IDProvider: id returned twice")
	}
	p.free = slices.Insert(p.free, i, id)
}

// InUse returns the number of ids handed out and not yet returned.
func (p *IDProvider) InUse() int {
	return int(p.next) - len(p.free)
}
