package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/timely/libs/interval"
	"github.com/md-rashed-zaman/timely/libs/itemstore"
	"github.com/md-rashed-zaman/timely/libs/lockx"
)

// Service owns an owner's slots. Writes run under the owner's lock so the
// fetch, conflict check and insert happen as one step.
type Service struct {
	slots        itemstore.SlotStore
	reservations itemstore.ReservationStore
	locker       lockx.Locker
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(slots itemstore.SlotStore, reservations itemstore.ReservationStore, locker lockx.Locker, logger *slog.Logger) *Service {
	return &Service{
		slots:        slots,
		reservations: reservations,
		locker:       locker,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateSlot stores iv for owner unless it overlaps a slot or a reservation of that owner.
// Returns interval.ErrInvalidRange or interval.ErrConflict without touching the store.
func (s *Service) CreateSlot(ctx context.Context, owner string, iv interval.Interval) (itemstore.Slot, error) {
	if !iv.Valid() {
		return itemstore.Slot{}, interval.ErrInvalidRange
	}

	unlock, err := s.locker.Lock(ctx, owner)
	if err != nil {
		return itemstore.Slot{}, fmt.Errorf("lock calendar: %w", err)
	}
	defer unlock()

	occupied, err := itemstore.Occupied(ctx, s.slots, s.reservations, owner, s.logger)
	if err != nil {
		return itemstore.Slot{}, err
	}
	if err := interval.CheckAvailable(occupied, iv); err != nil {
		return itemstore.Slot{}, err
	}

	slot := itemstore.Slot{
		ID:        uuid.NewString(),
		Owner:     owner,
		Start:     iv.Start,
		End:       iv.End,
		CreatedAt: s.now().UTC(),
	}
	if err := s.slots.InsertSlot(ctx, slot); err != nil {
		return itemstore.Slot{}, err
	}
	return slot, nil
}

func (s *Service) ListSlots(ctx context.Context, owner string) ([]itemstore.Slot, error) {
	return s.slots.ListSlots(ctx, owner)
}

func (s *Service) DeleteSlot(ctx context.Context, owner, id string) error {
	unlock, err := s.locker.Lock(ctx, owner)
	if err != nil {
		return fmt.Errorf("lock calendar: %w", err)
	}
	defer unlock()
	return s.slots.DeleteSlot(ctx, owner, id)
}

// FreeSlots returns the gaps in window not covered by owner's slots or reservations.
func (s *Service) FreeSlots(ctx context.Context, owner string, window interval.Interval) ([]interval.Free, error) {
	if !window.Valid() {
		return nil, interval.ErrInvalidRange
	}
	occupied, err := itemstore.Occupied(ctx, s.slots, s.reservations, owner, s.logger)
	if err != nil {
		return nil, err
	}
	return interval.FreeIntervals(occupied, window)
}
