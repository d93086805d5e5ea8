package catalog

import (
	"context"
	"sync"
)

// prefixLocks serializes work per identifier prefix. Entries are reference
// counted and dropped once nobody holds or waits for them.
type prefixLocks struct {
	mu    sync.Mutex
	locks map[string]*prefixLock
}

type prefixLock struct {
	ch   chan struct{}
	refs int
}

func newPrefixLocks() *prefixLocks {
	return &prefixLocks{locks: make(map[string]*prefixLock)}
}

// lock blocks until prefix is free or ctx is done.
func (p *prefixLocks) lock(ctx context.Context, prefix string) (unlock func(), err error) {
	p.mu.Lock()
	l, ok := p.locks[prefix]
	if !ok {
		l = &prefixLock{ch: make(chan struct{}, 1)}
		p.locks[prefix] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			p.release(prefix, l)
		}, nil
	case <-ctx.Done():
		p.release(prefix, l)
		return nil, ctx.Err()
	}
}

func (p *prefixLocks) release(prefix string, l *prefixLock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, prefix)
	}
}

// size returns the number of live entries.
func (p *prefixLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
