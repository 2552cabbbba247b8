// Package itemstore persists slots and reservations, the two sources of occupied time.
package itemstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/timely/libs/interval"
)

var ErrNotFound = errors.New("item not found")

// Slot is a block of time an owner has taken for themselves.
type Slot struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"ownerEmail"`
	Start     time.Time `bson:"startTime"`
	End       time.Time `bson:"endTime"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (s Slot) Owned() interval.Owned {
	return interval.Owned{ID: s.ID, Owner: s.Owner, Interval: interval.Interval{Start: s.Start, End: s.End}}
}

// Reservation is one participant's copy of a booking. All copies of a booking share SlotID.
type Reservation struct {
	ID           string    `bson:"_id"`
	SlotID       string    `bson:"slotId"`
	Creator      string    `bson:"creatorEmail"`
	Participant  string    `bson:"participantEmail"`
	Participants []string  `bson:"participants"`
	Start        time.Time `bson:"startTime"`
	End          time.Time `bson:"endTime"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (r Reservation) Owned() interval.Owned {
	return interval.Owned{ID: r.SlotID, Owner: r.Participant, Interval: interval.Interval{Start: r.Start, End: r.End}}
}

// SlotStore lists are ordered by start time ascending.
type SlotStore interface {
	ListSlots(ctx context.Context, owner string) ([]Slot, error)
	InsertSlot(ctx context.Context, slot Slot) error
	DeleteSlot(ctx context.Context, owner, id string) error
}

type ReservationStore interface {
	ListReservations(ctx context.Context, participant string) ([]Reservation, error)
	InsertReservations(ctx context.Context, items []Reservation) error
	// DeleteReservations removes every participant copy of a booking made by creator and
	// returns what was removed. ErrNotFound when nothing matched.
	DeleteReservations(ctx context.Context, creator, slotID string) ([]Reservation, error)
}

// Occupied collects everything that blocks owner's time: their own slots and every
// reservation they participate in. Rows whose end is not after their start are dropped and
// reported to logger when it is non-nil.
func Occupied(ctx context.Context, slots SlotStore, reservations ReservationStore, owner string, logger *slog.Logger) ([]interval.Owned, error) {
	var out []interval.Owned
	keep := func(kind string, o interval.Owned) {
		if o.Valid() {
			out = append(out, o)
			return
		}
		if logger != nil {
			logger.WarnContext(ctx, "skipping malformed stored interval",
				"kind", kind, "id", o.ID, "owner", owner, "start", o.Start, "end", o.End)
		}
	}
	if slots != nil {
		items, err := slots.ListSlots(ctx, owner)
		if err != nil {
			return nil, err
		}
		for _, s := range items {
			keep("slot", s.Owned())
		}
	}
	if reservations != nil {
		items, err := reservations.ListReservations(ctx, owner)
		if err != nil {
			return nil, err
		}
		for _, r := range items {
			keep("reservation", r.Owned())
		}
	}
	return out, nil
}
