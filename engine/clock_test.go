package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(40 * time.Millisecond)
	assert.Equal(t, start.Add(40*time.Millisecond), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSystemClockMoves(t *testing.T) {
	var c Clock = SystemClock{}
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	assert.True(t, c.Now().After(a))
}
