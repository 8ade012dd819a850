package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 0.26, RoundTo(0.26, 4))
	assert.Equal(t, 0.3333, RoundTo(1.0/3.0, 4))
	assert.Equal(t, 2.5, RoundTo(2.45, 1))
	assert.Equal(t, 3.0, RoundTo(2.5, 0))
	assert.Equal(t, 3.0, RoundTo(2.6, -1))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(3, 0))
	assert.Equal(t, 50.0, Percentage(2, 4))
	assert.Equal(t, 66.7, Percentage(2, 3))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Прив", Truncate("Привіт", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestLoadLocationOrUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocationOrUTC(""))
	assert.Equal(t, time.UTC, LoadLocationOrUTC("Not/AZone"))
}
