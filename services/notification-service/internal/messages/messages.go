// Package messages turns domain events into emails.
package messages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/timely/libs/kafkax"
	"github.com/md-rashed-zaman/timely/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

const (
	TopicUserRegistered     = "auth.user.registered.v1"
	TopicReservationCreated = "booking.reservation.created.v1"

	KindWelcome    = "welcome"
	KindInvitation = "invitation"
)

var ErrMalformedEvent = errors.New("malformed event")

type Sender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Email struct {
	Kind    string
	To      string
	Subject string
	Body    string
}

type userRegistered struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

type reservationCreated struct {
	SlotID       string    `json:"slot_id"`
	CreatorEmail string    `json:"creator_email"`
	CreatorName  string    `json:"creator_name"`
	Participants []string  `json:"participants"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}

// Welcome builds the greeting sent after registration.
func Welcome(payload []byte) ([]Email, error) {
	var evt userRegistered
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(evt.User.Email) == "" {
		return nil, fmt.Errorf("%w: missing user email", ErrMalformedEvent)
	}
	return []Email{{
		Kind:    KindWelcome,
		To:      evt.User.Email,
		Subject: "Welcome to Timely!",
		Body:    fmt.Sprintf("Hi %s, thanks for signing up!", evt.User.Name),
	}}, nil
}

// Invitations builds one email per participant other than the creator.
func Invitations(payload []byte) ([]Email, error) {
	var evt reservationCreated
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.SlotID == "" || evt.CreatorEmail == "" {
		return nil, fmt.Errorf("%w: missing slot or creator", ErrMalformedEvent)
	}
	inviter := evt.CreatorName
	if inviter == "" {
		inviter = evt.CreatorEmail
	}
	when := fmt.Sprintf("%s to %s (UTC)",
		evt.StartTime.UTC().Format("Mon 02 Jan 2006 15:04"),
		evt.EndTime.UTC().Format("15:04"))

	out := make([]Email, 0, len(evt.Participants))
	for _, p := range evt.Participants {
		if strings.EqualFold(p, evt.CreatorEmail) {
			continue
		}
		out = append(out, Email{
			Kind:    KindInvitation,
			To:      p,
			Subject: fmt.Sprintf("%s invited you to a meeting", inviter),
			Body: fmt.Sprintf("Hi,\n\n%s (%s) booked a meeting with you on %s.\nThe time has been reserved in your calendar.\n",
				inviter, evt.CreatorEmail, when),
		})
	}
	return out, nil
}

type Dispatcher struct {
	sender   Sender
	recorder Recorder
	logger   *slog.Logger
	// failSuffix makes sends to matching recipients fail. Used to exercise the failure path in dev.
	failSuffix string
}

func NewDispatcher(sender Sender, recorder Recorder, logger *slog.Logger, failSuffix string) *Dispatcher {
	return &Dispatcher{sender: sender, recorder: recorder, logger: logger, failSuffix: strings.TrimSpace(failSuffix)}
}

// Topics lists the topics Handle understands.
func (d *Dispatcher) Topics() []string {
	return []string{TopicUserRegistered, TopicReservationCreated}
}

// Handle sends every email an event implies and records each outcome.
// A malformed event is logged and dropped; only recorder errors are returned.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	var (
		emails []Email
		err    error
	)
	switch msg.Topic {
	case TopicUserRegistered:
		emails, err = Welcome(msg.Value)
	case TopicReservationCreated:
		emails, err = Invitations(msg.Value)
	default:
		d.logger.Warn("unhandled topic", "topic", msg.Topic)
		return nil
	}
	meta := kafkax.ExtractEventMeta(msg)
	if err != nil {
		d.logger.Error("event dropped", "err", err, "topic", msg.Topic, "event_id", meta.EventID)
		return nil
	}

	for _, e := range emails {
		n := storage.Notification{
			EventID:   meta.EventID,
			Kind:      e.Kind,
			Recipient: e.To,
			Subject:   e.Subject,
			Payload:   map[string]any{"topic": msg.Topic, "body": e.Body},
			Status:    storage.StatusSent,
		}
		if sendErr := d.send(ctx, e); sendErr != nil {
			d.logger.Error("email send failed", "err", sendErr, "kind", e.Kind, "to", e.To)
			n.Status = storage.StatusFailed
			n.Error = sendErr.Error()
		} else {
			d.logger.Info("email sent", "kind", e.Kind, "to", e.To, "event_id", meta.EventID)
		}
		if err := d.recorder.Insert(ctx, n); err != nil {
			return fmt.Errorf("record notification: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, e Email) error {
	if d.failSuffix != "" && strings.HasSuffix(strings.ToLower(e.To), strings.ToLower(d.failSuffix)) {
		return fmt.Errorf("simulated failure for %s", e.To)
	}
	return d.sender.Send(ctx, e.To, e.Subject, e.Body)
}
