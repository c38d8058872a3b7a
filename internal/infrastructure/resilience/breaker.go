package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned without calling the operation while a breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe budget is used up.
	ErrTooManyRequests = errors.New("too many requests while circuit is half-open")
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// Counts are the request statistics of the current window.
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Settings configures a Breaker. Zero values select the defaults.
type Settings struct {
	// Probes is the number of requests let through while half-open.
	Probes uint32
	// Window resets the counts periodically while closed.
	Window time.Duration
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration
	// Trip decides, after a failure, whether to open.
	Trip func(Counts) bool
	// OnStateChange observes transitions.
	OnStateChange func(name string, from, to State)
}

// Breaker implements the circuit breaker pattern for one dependency.
type Breaker struct {
	name string
	cfg  Settings

	mu      sync.Mutex
	state   State
	counts  Counts
	until   time.Time
	version uint64
	now     func() time.Time
}

// New creates a breaker.
func New(name string, cfg Settings) *Breaker {
	if cfg.Probes == 0 {
		cfg.Probes = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Trip == nil {
		cfg.Trip = func(c Counts) bool { return c.ConsecutiveFailures > 5 }
	}
	b := &Breaker{name: name, cfg: cfg, now: time.Now}
	b.until = b.now().Add(cfg.Window)
	return b
}

func (b *Breaker) Name() string { return b.name }

// State returns the state, applying any transition that is due.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.now())
	return b.state
}

// Counts returns a copy of the current window's counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs fn through the breaker. Panics count as failures and are re-raised.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	version, err := b.admit()
	if err != nil {
		return zero, err
	}

	ok := false
	defer func() {
		if !ok {
			b.record(version, false)
		}
	}()

	res, err := fn()
	ok = true
	b.record(version, err == nil)
	return res, err
}

// Execute is Do without a typed result.
func (b *Breaker) Execute(fn func() error) error {
	_, err := Do(b, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.now())

	switch {
	case b.state == StateOpen:
		return b.version, ErrCircuitOpen
	case b.state == StateHalfOpen && b.counts.Requests >= b.cfg.Probes:
		return b.version, ErrTooManyRequests
	}
	b.counts.Requests++
	return b.version, nil
}

func (b *Breaker) record(version uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.advance(now)
	if version != b.version {
		return
	}

	if success {
		b.counts.Successes++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.cfg.Probes {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	if b.state == StateHalfOpen || b.cfg.Trip(b.counts) {
		b.transition(StateOpen, now)
	}
}

func (b *Breaker) advance(now time.Time) {
	if now.Before(b.until) {
		return
	}
	switch b.state {
	case StateClosed:
		b.counts = Counts{}
		b.version++
		b.until = now.Add(b.cfg.Window)
	case StateOpen:
		b.transition(StateHalfOpen, now)
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.counts = Counts{}
	b.version++

	switch to {
	case StateClosed:
		b.until = now.Add(b.cfg.Window)
	case StateOpen:
		b.until = now.Add(b.cfg.Cooldown)
	case StateHalfOpen:
		// stays half-open until probes decide
		b.until = now.Add(100 * 365 * 24 * time.Hour)
	}

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// Group lazily creates one breaker per key, e.g. per upstream host.
type Group struct {
	cfg      Settings
	breakers sync.Map
}

// NewGroup creates a group whose breakers share cfg.
func NewGroup(cfg Settings) *Group {
	return &Group{cfg: cfg}
}

// Get returns the breaker for key.
func (g *Group) Get(key string) *Breaker {
	if b, ok := g.breakers.Load(key); ok {
		return b.(*Breaker)
	}
	b, _ := g.breakers.LoadOrStore(key, New(key, g.cfg))
	return b.(*Breaker)
}

// States reports the state of every breaker created so far.
func (g *Group) States() map[string]string {
	out := make(map[string]string)
	g.breakers.Range(func(k, v any) bool {
		out[k.(string)] = v.(*Breaker).State().String()
		return true
	})
	return out
}
