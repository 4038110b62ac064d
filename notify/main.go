// Package notify fans values out to any number of subscriber channels.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const multiplexerTimeout = 200 * time.Millisecond

type subscriber[E any] struct {
	ch      chan E
	comment string
}

// MultiplexerSender is the sending half of a Multiplexer. Only the owner of the
// multiplexed value should hold it.
type MultiplexerSender[E any] struct {
	m *Multiplexer[E]
}

// Send delivers e to every subscriber without blocking the caller.
// Values sent in quick succession may arrive out of order.
func (ms *MultiplexerSender[E]) Send(e E) {
	go ms.m.send(e)
}

// SendWait is Send, but returns after every subscriber got e (or timed out).
func (ms *MultiplexerSender[E]) SendWait(e E) {
	ms.m.send(e)
}

func NewMultiplexerSender[E any](comment string) (*MultiplexerSender[E], *Multiplexer[E]) {
	m := &Multiplexer[E]{
		comment: comment,
	}
	return &MultiplexerSender[E]{m: m}, m
}

type Multiplexer[E any] struct {
	comment         string
	subscribersLock sync.Mutex
	subscribers     []subscriber[E]
}

// subscribersLock must be taken!
func (m *Multiplexer[E]) cleanup() {
	m.subscribers = slices.DeleteFunc(m.subscribers, func(sub subscriber[E]) bool { return sub.ch == nil })
}

func (m *Multiplexer[E]) Subscribe(comment string, c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.subscribers = append(m.subscribers, subscriber[E]{
		ch:      c,
		comment: comment,
	})
}

func (m *Multiplexer[E]) Unsubscribe(c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	i := slices.IndexFunc(m.subscribers, func(sub subscriber[E]) bool { return sub.ch == c })
	if i == -1 {
		panic("already unsubscribed")
	}
	m.subscribers[i] = subscriber[E]{}
	m.cleanup()
}

// Len returns the number of subscribers.
func (m *Multiplexer[E]) Len() int {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	return len(m.subscribers)
}

func (m *Multiplexer[E]) send(e E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- e:
		case <-time.After(multiplexerTimeout):
			m.timeout(sub)
		}
	}
}

func (m *Multiplexer[E]) timeout(sub subscriber[E]) {
	zap.S().Warnw("multiplexer: subscriber timed out",
		"multiplexer", m.comment,
		"subscriber", sub.comment)
}
