package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/timely/libs/interval"
	"github.com/md-rashed-zaman/timely/libs/itemstore"
	"github.com/md-rashed-zaman/timely/libs/lockx"
	"github.com/stretchr/testify/require"
)

type published struct {
	eventType string
	key       string
	payload   map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, eventType, key string, payload []byte) (string, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{eventType: eventType, key: key, payload: body})
	return "evt", nil
}

var base = time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

func hours(from, to int) interval.Interval {
	return interval.Interval{Start: base.Add(time.Duration(from) * time.Hour), End: base.Add(time.Duration(to) * time.Hour)}
}

func newService() (*Service, *itemstore.Memory, *fakePublisher) {
	store := itemstore.NewMemory()
	pub := &fakePublisher{}
	svc := NewService(store, store, lockx.NewLocalLocker(), pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, store, pub
}

var ada = Creator{Email: "ada@example.com", Name: "Ada"}

func TestParticipants(t *testing.T) {
	got, err := Participants("ada@example.com", []string{"Bob@Example.com", "bob@example.com", " ada@example.com", "carol@example.com"})
	require.NoError(t, err)
	require.Equal(t, []string{"ada@example.com", "bob@example.com", "carol@example.com"}, got)

	_, err = Participants("ada@example.com", []string{"not-an-email"})
	require.Error(t, err)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newService()

	t.Run("1. every participant gets a reservation with a shared slot id", func(t *testing.T) {
		booking, err := svc.Create(ctx, ada, hours(10, 11), []string{"bob@example.com"})
		require.NoError(t, err)
		require.Equal(t, []string{"ada@example.com", "bob@example.com"}, booking.Participants)

		for _, p := range booking.Participants {
			items, err := store.ListReservations(ctx, p)
			require.NoError(t, err)
			require.Len(t, items, 1)
			require.Equal(t, booking.SlotID, items[0].SlotID)
			require.Equal(t, "ada@example.com", items[0].Creator)
		}

		require.Len(t, pub.events, 1)
		require.Equal(t, EventCreated, pub.events[0].eventType)
		require.Equal(t, booking.SlotID, pub.events[0].key)
		require.Equal(t, "Ada", pub.events[0].payload["creator_name"])
	})

	t.Run("2. a busy participant blocks the booking and is named", func(t *testing.T) {
		require.NoError(t, store.InsertSlot(ctx, itemstore.Slot{ID: "s1", Owner: "carol@example.com", Start: hours(13, 14).Start, End: hours(13, 14).End}))

		_, err := svc.Create(ctx, ada, hours(13, 15), []string{"carol@example.com", "dave@example.com"})
		require.ErrorIs(t, err, interval.ErrConflict)
		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		require.Equal(t, "carol@example.com", conflict.Participant)

		items, err := store.ListReservations(ctx, "dave@example.com")
		require.NoError(t, err)
		require.Empty(t, items, "nobody is booked when one participant conflicts")
	})

	t.Run("3. existing reservations of a participant conflict", func(t *testing.T) {
		_, err := svc.Create(ctx, Creator{Email: "erin@example.com"}, hours(10, 12), []string{"bob@example.com"})
		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		require.Equal(t, "bob@example.com", conflict.Participant)
	})

	t.Run("4. touching bookings are fine", func(t *testing.T) {
		_, err := svc.Create(ctx, ada, hours(11, 12), []string{"bob@example.com"})
		require.NoError(t, err)
	})

	t.Run("5. invalid range", func(t *testing.T) {
		_, err := svc.Create(ctx, ada, hours(12, 12), nil)
		require.ErrorIs(t, err, interval.ErrInvalidRange)
	})

	t.Run("6. a reversed stored slot does not block anyone", func(t *testing.T) {
		require.NoError(t, store.InsertSlot(ctx, itemstore.Slot{ID: "bad", Owner: "frank@example.com", Start: hours(17, 16).Start, End: hours(17, 16).End}))
		_, err := svc.Create(ctx, ada, hours(15, 18), []string{"frank@example.com"})
		require.NoError(t, err)
	})
}

func TestCreateConcurrentOverlappingBookings(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	creators := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"}
	for _, c := range creators {
		wg.Add(1)
		go func(creator string) {
			defer wg.Done()
			_, err := svc.Create(ctx, Creator{Email: creator}, hours(9, 10), []string{"shared@example.com"})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else if !errors.Is(err, interval.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(c)
	}
	wg.Wait()

	require.Equal(t, 1, created)
	items, err := store.ListReservations(ctx, "shared@example.com")
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newService()

	booking, err := svc.Create(ctx, ada, hours(10, 11), []string{"bob@example.com"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Cancel(ctx, "bob@example.com", booking.SlotID), itemstore.ErrNotFound)
	require.NoError(t, svc.Cancel(ctx, "ada@example.com", booking.SlotID))
	require.ErrorIs(t, svc.Cancel(ctx, "ada@example.com", booking.SlotID), itemstore.ErrNotFound)

	items, err := store.ListReservations(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Empty(t, items)

	last := pub.events[len(pub.events)-1]
	require.Equal(t, EventCancelled, last.eventType)
	require.Equal(t, booking.SlotID, last.payload["slot_id"])
}
