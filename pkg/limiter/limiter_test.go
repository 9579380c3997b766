package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowPerKeyBurst(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := New(1, 2)
	p.now = func() time.Time { return now }

	assert.True(t, p.Allow("10.0.0.1"))
	assert.True(t, p.Allow("10.0.0.1"))
	assert.False(t, p.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, p.Allow("10.0.0.2"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, p.Allow("10.0.0.1"), "one token refilled")
	assert.False(t, p.Allow("10.0.0.1"))
}

func TestSweepDropsIdleKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := New(10, 10)
	p.now = func() time.Time { return now }

	p.Allow("a")
	now = now.Add(time.Minute)
	p.Allow("b")
	assert.Equal(t, 2, p.Len())

	assert.Equal(t, 1, p.Sweep(30*time.Second))
	assert.Equal(t, 1, p.Len())
}

func TestNilPoolAllows(t *testing.T) {
	var p *Pool
	assert.True(t, p.Allow("x"))
	assert.Zero(t, p.Sweep(time.Second))
	assert.Zero(t, p.Len())
}

func TestDefaults(t *testing.T) {
	p := New(0, 0)
	assert.Equal(t, 10, p.burst)
	assert.InDelta(t, 5, float64(p.rps), 0)
}
