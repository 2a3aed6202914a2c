package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownWindowIsStrict(t *testing.T) {
	c := NewCooldowns(300 * time.Second)
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	assert.True(t, c.Allow("1", 300*time.Second, t0))
	assert.False(t, c.Allow("1", 300*time.Second, t0.Add(10*time.Second)))
	assert.False(t, c.Allow("1", 300*time.Second, t0.Add(300*time.Second)))
	assert.True(t, c.Allow("1", 300*time.Second, t0.Add(301*time.Second)))

	// a suppressed detection does not extend the window
	assert.False(t, c.Allow("1", 300*time.Second, t0.Add(400*time.Second)))
	assert.True(t, c.Allow("1", 300*time.Second, t0.Add(602*time.Second)))
}

func TestCooldownKeysAreIndependent(t *testing.T) {
	c := NewCooldowns(300 * time.Second)
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	assert.True(t, c.Allow("1", 300*time.Second, t0))
	assert.True(t, c.Allow("2", 300*time.Second, t0))
	assert.True(t, c.Allow(UnknownKey, 60*time.Second, t0))
	assert.False(t, c.Allow(UnknownKey, 60*time.Second, t0.Add(30*time.Second)))
	assert.True(t, c.Allow(UnknownKey, 60*time.Second, t0.Add(61*time.Second)))
}

func TestCooldownPrunesExpiredEntries(t *testing.T) {
	c := NewCooldowns(300 * time.Second)
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	c.Allow("1", 300*time.Second, t0)
	c.Allow("2", 300*time.Second, t0)
	assert.Equal(t, 2, c.Len())

	c.Allow("3", 300*time.Second, t0.Add(time.Hour))
	assert.Equal(t, 1, c.Len())
}
