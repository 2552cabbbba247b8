package interval

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func iv(h1, m1, h2, m2 int) Interval {
	return Interval{Start: at(h1, m1), End: at(h2, m2)}
}

func owned(ivs ...Interval) []Owned {
	out := make([]Owned, 0, len(ivs))
	for i, x := range ivs {
		out = append(out, Owned{ID: string(rune('a' + i)), Owner: "ada@example.com", Interval: x})
	}
	return out
}

func spans(free []Free) []Interval {
	out := make([]Interval, 0, len(free))
	for _, f := range free {
		out = append(out, f.Interval)
	}
	return out
}

func TestFreeIntervals(t *testing.T) {
	t.Run("1. empty existing set returns the whole window", func(t *testing.T) {
		free, err := FreeIntervals(nil, iv(9, 0, 17, 0))
		require.NoError(t, err)
		require.Equal(t, []Interval{iv(9, 0, 17, 0)}, spans(free))
	})

	t.Run("2. single booking splits the window", func(t *testing.T) {
		free, err := FreeIntervals(owned(iv(10, 0, 11, 0)), iv(9, 0, 12, 0))
		require.NoError(t, err)
		require.Equal(t, []Interval{iv(9, 0, 10, 0), iv(11, 0, 12, 0)}, spans(free))
	})

	t.Run("3. overlapping bookings are merged", func(t *testing.T) {
		free, err := FreeIntervals(owned(iv(10, 0, 11, 0), iv(10, 30, 12, 0)), iv(9, 0, 13, 0))
		require.NoError(t, err)
		require.Equal(t, []Interval{iv(9, 0, 10, 0), iv(12, 0, 13, 0)}, spans(free))
	})

	t.Run("4. booking touching the window start is ignored", func(t *testing.T) {
		free, err := FreeIntervals(owned(iv(9, 0, 10, 0)), iv(10, 0, 11, 0))
		require.NoError(t, err)
		require.Equal(t, []Interval{iv(10, 0, 11, 0)}, spans(free))
	})

	t.Run("5. inverted window is rejected", func(t *testing.T) {
		free, err := FreeIntervals(nil, iv(12, 0, 9, 0))
		require.ErrorIs(t, err, ErrInvalidRange)
		require.Nil(t, free)
	})

	t.Run("6. zero width window is rejected", func(t *testing.T) {
		_, err := FreeIntervals(nil, iv(12, 0, 12, 0))
		require.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("7. nested booking does not reappear as free time", func(t *testing.T) {
		free, err := FreeIntervals(owned(iv(10, 0, 14, 0), iv(11, 0, 12, 0)), iv(9, 0, 15, 0))
		require.NoError(t, err)
		require.Equal(t, []Interval{iv(9, 0, 10, 0), iv(14, 0, 15, 0)}, spans(free))
	})

	t.Run("8. adjacent bookings leave no zero width gap", func(t *testing.T) {
		free, err := FreeIntervals(owned(iv(10, 0, 11, 0), iv(11, 0, 12, 0)), iv(9, 0, 13, 0))
		require.NoError(t, err)
		require.Equal(t, []Interval{iv(9, 0, 10, 0), iv(12, 0, 13, 0)}, spans(free))
	})

	t.Run("9. identical bookings are coalesced", func(t *testing.T) {
		free, err := FreeIntervals(owned(iv(10, 0, 11, 0), iv(10, 0, 11, 0)), iv(9, 0, 12, 0))
		require.NoError(t, err)
		require.Equal(t, []Interval{iv(9, 0, 10, 0), iv(11, 0, 12, 0)}, spans(free))
	})

	t.Run("10. fully covered window yields nothing", func(t *testing.T) {
		free, err := FreeIntervals(owned(iv(8, 0, 18, 0)), iv(9, 0, 17, 0))
		require.NoError(t, err)
		require.Empty(t, free)
	})

	t.Run("11. unsorted input and bookings outside the window", func(t *testing.T) {
		existing := owned(iv(15, 0, 16, 0), iv(6, 0, 7, 0), iv(8, 30, 9, 30), iv(16, 30, 18, 0))
		free, err := FreeIntervals(existing, iv(9, 0, 17, 0))
		require.NoError(t, err)
		require.Equal(t, []Interval{iv(9, 30, 15, 0), iv(16, 0, 16, 30)}, spans(free))
	})

	t.Run("12. every free interval carries its own id", func(t *testing.T) {
		free, err := FreeIntervals(owned(iv(10, 0, 11, 0)), iv(9, 0, 12, 0))
		require.NoError(t, err)
		require.Len(t, free, 2)
		require.NotEmpty(t, free[0].ID)
		require.NotEqual(t, free[0].ID, free[1].ID)
	})

	t.Run("13. invalid stored intervals are skipped", func(t *testing.T) {
		free, err := FreeIntervals(owned(iv(11, 0, 10, 0)), iv(9, 0, 12, 0))
		require.NoError(t, err)
		require.Equal(t, []Interval{iv(9, 0, 12, 0)}, spans(free))
	})
}

func TestHasConflict(t *testing.T) {
	existing := owned(iv(10, 0, 11, 0))

	t.Run("1. nested candidate conflicts", func(t *testing.T) {
		conflict, err := HasConflict(existing, iv(10, 30, 10, 45))
		require.NoError(t, err)
		require.True(t, conflict)
	})

	t.Run("2. touching candidate does not conflict", func(t *testing.T) {
		conflict, err := HasConflict(existing, iv(11, 0, 12, 0))
		require.NoError(t, err)
		require.False(t, conflict)

		conflict, err = HasConflict(existing, iv(9, 0, 10, 0))
		require.NoError(t, err)
		require.False(t, conflict)
	})

	t.Run("3. candidate covering a booking conflicts", func(t *testing.T) {
		conflict, err := HasConflict(existing, iv(9, 0, 12, 0))
		require.NoError(t, err)
		require.True(t, conflict)
	})

	t.Run("4. invalid candidate is rejected", func(t *testing.T) {
		_, err := HasConflict(existing, iv(11, 0, 10, 0))
		require.ErrorIs(t, err, ErrInvalidRange)
		require.ErrorIs(t, CheckAvailable(existing, iv(11, 0, 11, 0)), ErrInvalidRange)
	})

	t.Run("5. CheckAvailable folds the result into ErrConflict", func(t *testing.T) {
		require.ErrorIs(t, CheckAvailable(existing, iv(10, 59, 11, 30)), ErrConflict)
		require.NoError(t, CheckAvailable(existing, iv(11, 0, 11, 30)))
		require.NoError(t, CheckAvailable(nil, iv(11, 0, 11, 30)))
	})

	t.Run("6. reversed stored interval is ignored", func(t *testing.T) {
		conflict, err := HasConflict(owned(iv(14, 0, 13, 0)), iv(12, 30, 14, 30))
		require.NoError(t, err)
		require.False(t, conflict)
	})
}

func TestMerge(t *testing.T) {
	in := []Interval{iv(13, 0, 14, 0), iv(9, 0, 10, 0), iv(10, 0, 11, 0), iv(9, 30, 9, 45)}
	merged := Merge(in)
	require.Equal(t, []Interval{iv(9, 0, 11, 0), iv(13, 0, 14, 0)}, merged)
	require.Equal(t, iv(13, 0, 14, 0), in[0], "input must not be reordered")
	require.Nil(t, Merge(nil))
}

func TestNew(t *testing.T) {
	got, err := New(at(9, 0), at(10, 0))
	require.NoError(t, err)
	require.Equal(t, time.Hour, got.Duration())

	_, err = New(at(10, 0), at(9, 0))
	require.ErrorIs(t, err, ErrInvalidRange)
}

// randomOwned builds intervals on a 15 minute grid between 06:00 and 20:00.
func randomOwned(r *rand.Rand, n int) []Owned {
	var out []Owned
	for i := 0; i < n; i++ {
		start := at(6, 0).Add(time.Duration(r.Intn(56)) * 15 * time.Minute)
		end := start.Add(time.Duration(1+r.Intn(12)) * 15 * time.Minute)
		out = append(out, Owned{ID: "x", Owner: "o", Interval: Interval{Start: start, End: end}})
	}
	return out
}

func covers(ivs []Interval, t time.Time) bool {
	for _, x := range ivs {
		if !t.Before(x.Start) && t.Before(x.End) {
			return true
		}
	}
	return false
}

func TestFreeIntervalsProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	window := iv(8, 0, 18, 0)

	for round := 0; round < 300; round++ {
		existing := randomOwned(r, r.Intn(8))

		free, err := FreeIntervals(existing, window)
		require.NoError(t, err)
		got := spans(free)

		for i, f := range got {
			require.True(t, f.Valid(), "round %d: zero width free interval %v", round, f)
			require.True(t, window.Contains(f), "round %d: %v escapes the window", round, f)
			if i > 0 {
				require.True(t, got[i-1].End.Before(f.Start), "round %d: free intervals not disjoint/sorted", round)
			}
		}

		var booked []Interval
		for _, e := range existing {
			booked = append(booked, e.Interval)
		}
		for tick := window.Start; tick.Before(window.End); tick = tick.Add(5 * time.Minute) {
			require.NotEqual(t, covers(booked, tick), covers(got, tick), "round %d: coverage broken at %s", round, tick.Format(time.Kitchen))
		}

		again, err := FreeIntervals(existing, window)
		require.NoError(t, err)
		require.Equal(t, got, spans(again))
	}
}

func TestHasConflictAgreesWithFreeIntervals(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for round := 0; round < 300; round++ {
		existing := randomOwned(r, r.Intn(6))
		candidate := randomOwned(r, 1)[0].Interval

		conflict, err := HasConflict(existing, candidate)
		require.NoError(t, err)

		free, err := FreeIntervals(existing, candidate)
		require.NoError(t, err)
		wholeFree := len(free) == 1 && free[0].Interval == candidate

		require.Equal(t, !wholeFree, conflict, "round %d: candidate %v", round, candidate)
	}
}
