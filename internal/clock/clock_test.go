package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedAdvance(t *testing.T) {
	c := NewFixed(1000)
	require.Equal(t, int64(1000), c.NowMs())
	c.Advance(2 * time.Second)
	require.Equal(t, int64(3000), c.NowMs())
}

func TestFixedSet(t *testing.T) {
	c := NewFixed(0)
	c.Set(42)
	require.Equal(t, int64(42), c.NowMs())
}
