package graph

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/notify"
	"nyiyui.ca/hato/senro/rail"
)

// Follower keeps a Graph up to date with a network's changes.
type Follower struct {
	changes *notify.Multiplexer[rail.Change]
	ch      chan rail.Change

	lock    sync.RWMutex
	seq     uint64
	current *Graph
	updated chan struct{}
}

// NewFollower starts from initial (usually a Network.Snapshot) and subscribes to
// changes. Call Run to start processing them.
func NewFollower(initial *rail.Layout, changes *notify.Multiplexer[rail.Change]) *Follower {
	f := &Follower{
		changes: changes,
		ch:      make(chan rail.Change, 8),
		current: Build(initial),
		updated: make(chan struct{}),
	}
	changes.Subscribe("graph follower", f.ch)
	return f
}

// Run rebuilds the graph on every change newer than the last one seen, until ctx is done.
func (f *Follower) Run(ctx context.Context) {
	defer f.changes.Unsubscribe(f.ch)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-f.ch:
			f.apply(c)
		}
	}
}

func (f *Follower) apply(c rail.Change) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if c.Seq <= f.seq {
		zap.S().Debugw("graph: stale change ignored", "seq", c.Seq, "latest", f.seq)
		return
	}
	f.seq = c.Seq
	f.current = Build(c.Layout)
	zap.S().Debugw("graph: rebuilt", "seq", c.Seq, "events", c.Events, "nodes", len(f.current.Nodes()))
	close(f.updated)
	f.updated = make(chan struct{})
}

// Graph returns the latest graph and the sequence number of the change it was built from.
func (f *Follower) Graph() (*Graph, uint64) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.current, f.seq
}

// Updated returns a channel closed at the next rebuild.
func (f *Follower) Updated() <-chan struct{} {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.updated
}
