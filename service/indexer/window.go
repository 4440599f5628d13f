package indexer

import (
	"fmt"
	"time"
)

// InWindow reports whether start <= t <= end. Both bounds are inclusive.
func InWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// LastWindow returns [now-d, now] in UTC.
func LastWindow(now time.Time, d time.Duration) Window {
	end := now.UTC()
	return Window{Start: end.Add(-d), End: end}
}

// Contains reports whether t falls inside w.
func (w Window) Contains(t time.Time) bool {
	return InWindow(t, w.Start, w.End)
}

// Validate rejects windows whose end precedes the start.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window bounds must be set")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("window end %s is before start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}
