package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/timely/libs/auth"
	"github.com/md-rashed-zaman/timely/libs/httpx"
	"github.com/md-rashed-zaman/timely/libs/interval"
	"github.com/md-rashed-zaman/timely/libs/itemstore"
	"github.com/md-rashed-zaman/timely/libs/lockx"
	"github.com/md-rashed-zaman/timely/libs/validate"
	"github.com/md-rashed-zaman/timely/services/booking-service/internal/reservations"
)

type BookingHandler struct {
	svc    *reservations.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *reservations.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type createBookingRequest struct {
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Participants []string `json:"participants"`
}

type bookingResponse struct {
	SlotID       string   `json:"slot_id"`
	UserEmail    string   `json:"user_email"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Participants []string `json:"participants"`
}

// Bookings serves GET (list) and POST (create) on /api/v1/bookings.
func (h *BookingHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromHeaders(r.Header)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	iv, err := validate.Interval("bookings.create", req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, err)
		return
	}

	booking, err := h.svc.Create(r.Context(), reservations.Creator{Email: id.Email, Name: id.Name}, iv, req.Participants)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("booking created", "slot_id", booking.SlotID, "creator", booking.Creator, "participants", len(booking.Participants))
	httpx.WriteJSON(w, http.StatusCreated, bookingResponse{
		SlotID:       booking.SlotID,
		UserEmail:    booking.Creator,
		StartTime:    iv.Start.Format(time.RFC3339),
		EndTime:      iv.End.Format(time.RFC3339),
		Participants: booking.Participants,
	})
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromHeaders(r.Header)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	items, err := h.svc.List(r.Context(), id.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]bookingResponse, 0, len(items))
	for _, it := range items {
		out = append(out, bookingResponse{
			SlotID:       it.SlotID,
			UserEmail:    it.Creator,
			StartTime:    it.Start.UTC().Format(time.RFC3339),
			EndTime:      it.End.UTC().Format(time.RFC3339),
			Participants: it.Participants,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Booking serves DELETE /api/v1/bookings/{slot_id}.
func (h *BookingHandler) Booking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := auth.IdentityFromHeaders(r.Header)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slotID := strings.TrimSpace(r.PathValue("slot_id"))
	if slotID == "" {
		http.Error(w, "slot_id required", http.StatusBadRequest)
		return
	}
	if err := h.svc.Cancel(r.Context(), id.Email, slotID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, err error) {
	var conflict *reservations.ConflictError
	switch {
	case errors.As(err, &conflict):
		http.Error(w, conflict.Error(), http.StatusConflict)
	case errors.Is(err, interval.ErrInvalidRange):
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
	case errors.Is(err, itemstore.ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, lockx.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "calendar busy, retry later", http.StatusServiceUnavailable)
	case validate.IsInputError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("booking request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
