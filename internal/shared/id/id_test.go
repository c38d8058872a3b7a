package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()
	assert.NotEqual(t, gen.GenerateString(), gen.GenerateString())
	assert.Len(t, gen.GenerateString(), 26)
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	gen := NewGenerator()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	gen.now = func() time.Time { return fixed }

	prev := gen.GenerateString()
	for i := 0; i < 50; i++ {
		next := gen.GenerateString()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		prefix string
		id     string
	}{
		{RequestPrefix, NewRequestID().String()},
		{TracePrefix, NewTraceID().String()},
		{SpanPrefix, NewSpanID().String()},
	}

	for _, tt := range tests {
		parts := strings.Split(tt.id, "_")
		require.Len(t, parts, 2, tt.id)
		assert.Equal(t, tt.prefix, parts[0])
		assert.True(t, IsValid(tt.id), tt.id)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(NewGenerator().GenerateString()))

	for _, id := range []string{"", "invalid", "1234567890", "zzzzzzzzzzzzzzzzzzzzzzzzzz", "req_"} {
		assert.False(t, IsValid(id), id)
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now()
	id := NewRequestID()
	after := time.Now()

	ts, err := Timestamp(id.String())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts.UnixMilli(), before.UnixMilli())
	assert.LessOrEqual(t, ts.UnixMilli(), after.UnixMilli())
}

func TestForeign(t *testing.T) {
	v, ok := Foreign(" abc-123_x.y ")
	assert.True(t, ok)
	assert.Equal(t, "abc-123_x.y", v)

	for _, bad := range []string{"", "   ", "a b", "<script>", "x\ny", strings.Repeat("a", 129)} {
		_, ok := Foreign(bad)
		assert.False(t, ok, bad)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	ids := make(chan string, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				ids <- gen.GenerateString()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func BenchmarkGenerateString(b *testing.B) {
	gen := NewGenerator()
	for i := 0; i < b.N; i++ {
		_ = gen.GenerateString()
	}
}
