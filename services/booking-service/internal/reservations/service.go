package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/timely/libs/interval"
	"github.com/md-rashed-zaman/timely/libs/itemstore"
	"github.com/md-rashed-zaman/timely/libs/lockx"
	"github.com/md-rashed-zaman/timely/libs/validate"
)

const (
	EventCreated   = "booking.reservation.created.v1"
	EventCancelled = "booking.reservation.cancelled.v1"
)

// ConflictError names the first participant whose calendar blocks the booking.
type ConflictError struct {
	Participant string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is not available at the requested time", e.Participant)
}

func (e *ConflictError) Unwrap() error { return interval.ErrConflict }

type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload []byte) (string, error)
}

// Creator is the authenticated caller making the booking.
type Creator struct {
	Email string
	Name  string
}

type Booking struct {
	SlotID       string
	Creator      string
	Participants []string
	Interval     interval.Interval
}

type Service struct {
	slots        itemstore.SlotStore
	reservations itemstore.ReservationStore
	locker       lockx.Locker
	publisher    Publisher
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(slots itemstore.SlotStore, reservations itemstore.ReservationStore, locker lockx.Locker, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		slots:        slots,
		reservations: reservations,
		locker:       locker,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// Participants lower-cases, validates and deduplicates raw addresses and always includes the creator.
// The result is sorted.
func Participants(creator string, raw []string) ([]string, error) {
	seen := map[string]struct{}{creator: {}}
	out := []string{creator}
	for _, r := range raw {
		email, err := validate.Email("CreateBooking", "participants", r)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	sort.Strings(out)
	return out, nil
}

// Create books iv for the creator and every participant. Either every participant gets a
// reservation or none does.
func (s *Service) Create(ctx context.Context, creator Creator, iv interval.Interval, rawParticipants []string) (Booking, error) {
	if !iv.Valid() {
		return Booking{}, interval.ErrInvalidRange
	}
	participants, err := Participants(creator.Email, rawParticipants)
	if err != nil {
		return Booking{}, err
	}

	unlock, err := lockx.LockAll(ctx, s.locker, participants...)
	if err != nil {
		return Booking{}, fmt.Errorf("lock calendars: %w", err)
	}
	defer unlock()

	for _, p := range participants {
		occupied, err := itemstore.Occupied(ctx, s.slots, s.reservations, p, s.logger)
		if err != nil {
			return Booking{}, err
		}
		if err := interval.CheckAvailable(occupied, iv); err != nil {
			if errors.Is(err, interval.ErrConflict) {
				return Booking{}, &ConflictError{Participant: p}
			}
			return Booking{}, err
		}
	}

	booking := Booking{
		SlotID:       uuid.NewString(),
		Creator:      creator.Email,
		Participants: participants,
		Interval:     iv,
	}
	createdAt := s.now().UTC()
	items := make([]itemstore.Reservation, 0, len(participants))
	for _, p := range participants {
		items = append(items, itemstore.Reservation{
			ID:           uuid.NewString(),
			SlotID:       booking.SlotID,
			Creator:      creator.Email,
			Participant:  p,
			Participants: participants,
			Start:        iv.Start,
			End:          iv.End,
			CreatedAt:    createdAt,
		})
	}
	if err := s.reservations.InsertReservations(ctx, items); err != nil {
		return Booking{}, err
	}

	s.publish(ctx, EventCreated, booking.SlotID, map[string]any{
		"slot_id":       booking.SlotID,
		"creator_email": creator.Email,
		"creator_name":  creator.Name,
		"participants":  participants,
		"start_time":    iv.Start.UTC().Format(time.RFC3339),
		"end_time":      iv.End.UTC().Format(time.RFC3339),
	})
	return booking, nil
}

// List returns the reservations participant takes part in, ordered by start.
func (s *Service) List(ctx context.Context, participant string) ([]itemstore.Reservation, error) {
	return s.reservations.ListReservations(ctx, participant)
}

// Cancel removes every participant's copy of the booking. Only its creator may cancel.
func (s *Service) Cancel(ctx context.Context, creator, slotID string) error {
	removed, err := s.reservations.DeleteReservations(ctx, creator, slotID)
	if err != nil {
		return err
	}
	first := removed[0]
	s.publish(ctx, EventCancelled, slotID, map[string]any{
		"slot_id":       slotID,
		"creator_email": creator,
		"participants":  first.Participants,
		"start_time":    first.Start.UTC().Format(time.RFC3339),
		"end_time":      first.End.UTC().Format(time.RFC3339),
		"cancelled_at":  s.now().UTC().Format(time.RFC3339),
	})
	return nil
}

// publish is best effort: the reservations are already stored.
func (s *Service) publish(ctx context.Context, eventType, key string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("event encode failed", "err", err, "event_type", eventType)
		return
	}
	if _, err := s.publisher.Publish(ctx, eventType, key, body); err != nil {
		s.logger.Error("event publish failed", "err", err, "event_type", eventType, "slot_id", key)
	}
}
