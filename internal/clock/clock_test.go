package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_ReturnsUTC(t *testing.T) {
	now := System().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestManual_AdvanceAndSet(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewManual(start)

	assert.Equal(t, start, m.Now())

	m.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), m.Now())

	later := time.Date(2030, 6, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	m.Set(later)
	assert.True(t, later.Equal(m.Now()))
	assert.Equal(t, time.UTC, m.Now().Location())
}
