package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedup_WithinTTL(t *testing.T) {
	d := NewDedup(time.Minute)
	now := time.Now()
	d.now = func() time.Time { return now }

	assert.False(t, d.IsDuplicate("sig-1"))
	assert.True(t, d.IsDuplicate("sig-1"))
	assert.False(t, d.IsDuplicate("sig-2"))
}

func TestDedup_ExpiresAfterTTL(t *testing.T) {
	d := NewDedup(time.Minute)
	now := time.Now()
	d.now = func() time.Time { return now }

	assert.False(t, d.IsDuplicate("sig-1"))
	now = now.Add(2 * time.Minute)
	assert.False(t, d.IsDuplicate("sig-1"))
}

func TestDedup_Cleanup(t *testing.T) {
	d := NewDedup(time.Minute)
	now := time.Now()
	d.now = func() time.Time { return now }

	d.IsDuplicate("sig-1")
	d.IsDuplicate("sig-2")
	assert.Equal(t, 2, d.Len())

	now = now.Add(2 * time.Minute)
	d.IsDuplicate("sig-3")
	d.Cleanup()
	assert.Equal(t, 1, d.Len())
}
