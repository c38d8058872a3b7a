package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingFactory(created *int) func(context.Context) (*Runtime, error) {
	return func(context.Context) (*Runtime, error) {
		*created++
		return &Runtime{}, nil
	}
}

func TestPoolReuse(t *testing.T) {
	created := 0
	p := NewPool(2, countingFactory(&created))

	rt, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(rt)

	again, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, rt, again)
	assert.Equal(t, 1, created)
}

func TestPoolWaitsWhenFull(t *testing.T) {
	created := 0
	p := NewPool(1, countingFactory(&created))

	rt, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release(rt)
	_, err = p.Acquire(context.Background())
	assert.NoError(t, err)
}

func TestPoolDropsBrokenRuntimes(t *testing.T) {
	created := 0
	p := NewPool(1, countingFactory(&created))

	rt, err := p.Acquire(context.Background())
	require.NoError(t, err)
	rt.broken = true
	p.Release(rt)
	assert.Equal(t, 0, p.Stats()["live"])

	fresh, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, rt, fresh)
	assert.Equal(t, 2, created)
}

func TestPoolFactoryError(t *testing.T) {
	p := NewPool(1, func(context.Context) (*Runtime, error) { return nil, errors.New("nope") })

	_, err := p.Acquire(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, p.Stats()["live"])
}

func TestPoolClose(t *testing.T) {
	created := 0
	p := NewPool(2, countingFactory(&created))
	p.seed(&Runtime{})

	inUse, err := p.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close())
	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	p.Release(inUse)
	stats := p.Stats()
	assert.Equal(t, 0, stats["live"])
	assert.Equal(t, true, stats["closed"])
}
