package indexer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInWindow_MatchesInclusivePredicate(t *testing.T) {
	for start := int64(0); start <= 6; start++ {
		for end := int64(0); end <= 6; end++ {
			for ts := int64(-1); ts <= 7; ts++ {
				want := start <= ts && ts <= end
				got := InWindow(unix(ts), unix(start), unix(end))
				assert.Equal(t, want, got, "t=%d start=%d end=%d", ts, start, end)
			}
		}
	}
}

func TestInWindow_Boundaries(t *testing.T) {
	start, end := unix(10), unix(20)

	assert.True(t, InWindow(start, start, end), "start is inclusive")
	assert.True(t, InWindow(end, start, end), "end is inclusive")
	assert.False(t, InWindow(start.Add(-time.Nanosecond), start, end))
	assert.False(t, InWindow(end.Add(time.Nanosecond), start, end))
}

func TestInWindow_PointWindow(t *testing.T) {
	at := unix(15)
	assert.True(t, InWindow(at, at, at))
	assert.False(t, InWindow(unix(14), at, at))
	assert.False(t, InWindow(unix(16), at, at))
}

func TestInWindow_IgnoresLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	assert.True(t, InWindow(unix(15).In(loc), unix(15), unix(15)))
}

func TestLastWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	w := LastWindow(now, 24*time.Hour)

	assert.Equal(t, time.UTC, w.End.Location())
	assert.True(t, w.End.Equal(now))
	assert.Equal(t, 24*time.Hour, w.End.Sub(w.Start))
	require.NoError(t, w.Validate())
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, Window{Start: unix(1), End: unix(1)}.Validate())
	assert.Error(t, Window{Start: unix(2), End: unix(1)}.Validate())
	assert.Error(t, Window{End: unix(1)}.Validate())
	assert.Error(t, Window{}.Validate())
}
