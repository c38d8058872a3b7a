package sandbox

import (
	"context"
	"sync"
)

// Pool hands out runtimes of one module, creating them on demand up to size.
type Pool struct {
	factory func(ctx context.Context) (*Runtime, error)
	idle    chan *Runtime
	slots   chan struct{}
	size    int

	mu     sync.RWMutex
	closed bool
}

// NewPool creates an empty pool.
func NewPool(size int, factory func(ctx context.Context) (*Runtime, error)) *Pool {
	if size <= 0 {
		size = DefaultConfig().PoolSize
	}
	return &Pool{
		factory: factory,
		idle:    make(chan *Runtime, size),
		slots:   make(chan struct{}, size),
		size:    size,
	}
}

// seed adds an already created runtime.
func (p *Pool) seed(rt *Runtime) {
	select {
	case p.slots <- struct{}{}:
		p.idle <- rt
	default:
		rt.Close()
	}
}

// Acquire returns an idle runtime, creates one if below size, or waits.
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case rt := <-p.idle:
		return rt, nil
	default:
	}

	select {
	case rt := <-p.idle:
		return rt, nil
	case p.slots <- struct{}{}:
		rt, err := p.factory(ctx)
		if err != nil {
			<-p.slots
			return nil, err
		}
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns rt to the pool. Broken runtimes are dropped and their
// slot freed so a fresh one can be created.
func (p *Pool) Release(rt *Runtime) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || rt.broken {
		rt.Close()
		<-p.slots
		return
	}
	p.idle <- rt
}

// Close drops idle runtimes. Runtimes in use are dropped on release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for {
		select {
		case rt := <-p.idle:
			rt.Close()
			<-p.slots
		default:
			return nil
		}
	}
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	live := len(p.slots)
	idle := len(p.idle)
	return map[string]interface{}{
		"size":      p.size,
		"live":      live,
		"available": idle,
		"in_use":    live - idle,
		"closed":    p.closed,
	}
}
