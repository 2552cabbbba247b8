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
	"github.com/md-rashed-zaman/timely/services/slots-service/internal/calendar"
	"github.com/md-rashed-zaman/timely/services/slots-service/internal/feed"
)

type SlotsHandler struct {
	svc    *calendar.Service
	logger *slog.Logger
	now    func() time.Time
}

func NewSlotsHandler(svc *calendar.Service, logger *slog.Logger) *SlotsHandler {
	return &SlotsHandler{svc: svc, logger: logger, now: time.Now}
}

type intervalRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotItem struct {
	SlotID    string `json:"slot_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func toItem(id string, iv interval.Interval) slotItem {
	return slotItem{
		SlotID:    id,
		StartTime: iv.Start.UTC().Format(time.RFC3339),
		EndTime:   iv.End.UTC().Format(time.RFC3339),
	}
}

// Slots serves GET (list) and POST (create) on /api/v1/slots.
func (h *SlotsHandler) Slots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SlotsHandler) create(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromHeaders(r.Header)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	iv, err := validate.Interval("slots.create", req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, err)
		return
	}

	slot, err := h.svc.CreateSlot(r.Context(), id.Email, iv)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("slot created", "slot_id", slot.ID, "owner", slot.Owner)
	httpx.WriteJSON(w, http.StatusCreated, toItem(slot.ID, slot.Owned().Interval))
}

func (h *SlotsHandler) list(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromHeaders(r.Header)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slots, err := h.svc.ListSlots(r.Context(), id.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, toItem(s.ID, s.Owned().Interval))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// Slot serves DELETE /api/v1/slots/{slot_id}.
func (h *SlotsHandler) Slot(w http.ResponseWriter, r *http.Request) {
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
	if err := h.svc.DeleteSlot(r.Context(), id.Email, slotID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FreeSlots serves GET /api/v1/free-slots. The window comes from the query string; a JSON body
// with the same fields is accepted when the query is empty.
func (h *SlotsHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	free, ok := h.freeSlots(w, r)
	if !ok {
		return
	}
	items := make([]slotItem, 0, len(free))
	for _, f := range free {
		items = append(items, toItem(f.ID, f.Interval))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// FreeSlotsICS serves the free-slot window as an iCalendar feed.
func (h *SlotsHandler) FreeSlotsICS(w http.ResponseWriter, r *http.Request) {
	free, ok := h.freeSlots(w, r)
	if !ok {
		return
	}
	events := make([]feed.Event, 0, len(free))
	for _, f := range free {
		events = append(events, feed.Event{UID: f.ID, Summary: "Free", Start: f.Start, End: f.End, Free: true})
	}
	h.writeCalendar(w, "Free time", events)
}

// SlotsICS serves the caller's slots as an iCalendar feed.
func (h *SlotsHandler) SlotsICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := auth.IdentityFromHeaders(r.Header)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slots, err := h.svc.ListSlots(r.Context(), id.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	events := make([]feed.Event, 0, len(slots))
	for _, s := range slots {
		events = append(events, feed.Event{UID: s.ID, Summary: "Busy", Start: s.Start, End: s.End})
	}
	h.writeCalendar(w, "Slots", events)
}

func (h *SlotsHandler) freeSlots(w http.ResponseWriter, r *http.Request) ([]interval.Free, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	id, ok := auth.IdentityFromHeaders(r.Header)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	req := intervalRequest{
		StartTime: r.URL.Query().Get("start_time"),
		EndTime:   r.URL.Query().Get("end_time"),
	}
	if req.StartTime == "" && req.EndTime == "" && r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return nil, false
		}
	}
	window, err := validate.Interval("slots.free", req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}

	free, err := h.svc.FreeSlots(r.Context(), id.Email, window)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return free, true
}

func (h *SlotsHandler) writeCalendar(w http.ResponseWriter, name string, events []feed.Event) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := feed.Write(w, name, events, h.now()); err != nil {
		h.logger.Error("calendar encode failed", "err", err)
	}
}

func (h *SlotsHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interval.ErrInvalidRange):
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
	case errors.Is(err, interval.ErrConflict):
		http.Error(w, "time slot overlaps an existing slot or reservation", http.StatusConflict)
	case errors.Is(err, itemstore.ErrNotFound):
		http.Error(w, "slot not found", http.StatusNotFound)
	case errors.Is(err, lockx.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "calendar busy, retry later", http.StatusServiceUnavailable)
	case validate.IsInputError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("slots request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
