package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_utc(t *testing.T) {
	assert.Equal(t, time.UTC, New().Now().Location())
}

func TestMock(t *testing.T) {
	paris := time.FixedZone("CEST", 2*60*60)
	m := NewMock(time.Date(2026, 9, 14, 12, 0, 0, 0, paris))

	assert.Equal(t, time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC), m.Now())

	m.Advance(90 * time.Minute)
	assert.Equal(t, time.Date(2026, 9, 14, 11, 30, 0, 0, time.UTC), m.Now())
}
