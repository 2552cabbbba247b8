package interval

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRange = errors.New("invalid range: start must be before end")
	ErrConflict     = errors.New("interval overlaps an existing one")
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return Interval{}, ErrInvalidRange
	}
	return iv, nil
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether i and o share at least one instant.
// [a,b) and [c,d) overlap iff b > c && a < d; intervals that only touch do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.End.After(o.Start) && i.Start.Before(o.End)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Owned is a booked or reserved interval that belongs to an owner.
type Owned struct {
	ID    string
	Owner string
	Interval
}

// Free is a gap inside a query window. The ID is generated per computation and is never stored.
type Free struct {
	ID string
	Interval
}

// HasConflict reports whether candidate overlaps any of the existing intervals.
// Malformed existing intervals never conflict.
func HasConflict(existing []Owned, candidate Interval) (bool, error) {
	if !candidate.Valid() {
		return false, ErrInvalidRange
	}
	for _, e := range existing {
		if e.Valid() && e.Overlaps(candidate) {
			return true, nil
		}
	}
	return false, nil
}

// CheckAvailable is HasConflict folded into a single error: ErrInvalidRange, ErrConflict or nil.
func CheckAvailable(existing []Owned, candidate Interval) error {
	conflict, err := HasConflict(existing, candidate)
	if err != nil {
		return err
	}
	if conflict {
		return ErrConflict
	}
	return nil
}

// FreeIntervals returns the maximal sub-ranges of window not covered by existing, ascending by start.
// The result is empty when the window is fully booked.
func FreeIntervals(existing []Owned, window Interval) ([]Free, error) {
	if !window.Valid() {
		return nil, ErrInvalidRange
	}

	var inWindow []Interval
	for _, e := range existing {
		if e.Valid() && e.Overlaps(window) {
			inWindow = append(inWindow, e.Interval)
		}
	}

	var free []Free
	cursor := window.Start
	for _, span := range Merge(inWindow) {
		if cursor.Before(span.Start) {
			free = append(free, newFree(cursor, span.Start))
		}
		if span.End.After(cursor) {
			cursor = span.End
		}
	}
	if cursor.Before(window.End) {
		free = append(free, newFree(cursor, window.End))
	}
	return free, nil
}

// Merge sorts intervals by start (then end) and coalesces the ones that overlap or touch.
// The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(a, b int) bool {
		if !sorted[a].Start.Equal(sorted[b].Start) {
			return sorted[a].Start.Before(sorted[b].Start)
		}
		return sorted[a].End.Before(sorted[b].End)
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func newFree(start, end time.Time) Free {
	return Free{ID: uuid.NewString(), Interval: Interval{Start: start, End: end}}
}
