package decay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecencyAtZeroElapsed(t *testing.T) {
	require.InDelta(t, 1.0, Recency(1000, 1000, 5000), 1e-9)
}

func TestRecencyAtHalfLife(t *testing.T) {
	require.InDelta(t, 0.5, Recency(6000, 1000, 5000), 1e-9)
}

func TestRecencyClampsNegativeElapsed(t *testing.T) {
	require.InDelta(t, 1.0, Recency(500, 1000, 5000), 1e-9)
}

func TestDefaultHalfLifeAllSuccess(t *testing.T) {
	base := int64(10000)
	hl := DefaultHalfLife(100, 0, base)
	require.Greater(t, hl, base)
	require.LessOrEqual(t, hl, int64(float64(base)*2.0))
}

func TestDefaultHalfLifeNoHistory(t *testing.T) {
	base := int64(10000)
	hl := DefaultHalfLife(0, 0, base)
	require.Equal(t, int64(float64(base)*0.5), hl)
}

func TestDaysToMs(t *testing.T) {
	require.Equal(t, int64(7*24*60*60*1000), DaysToMs(7))
}
