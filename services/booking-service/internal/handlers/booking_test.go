package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/md-rashed-zaman/timely/libs/auth"
	"github.com/md-rashed-zaman/timely/libs/itemstore"
	"github.com/md-rashed-zaman/timely/libs/lockx"
	"github.com/md-rashed-zaman/timely/services/booking-service/internal/reservations"
)

func newTestMux() (*http.ServeMux, *itemstore.Memory) {
	store := itemstore.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewBookingHandler(reservations.NewService(store, store, lockx.NewLocalLocker(), nil, logger), logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bookings", h.Bookings)
	mux.HandleFunc("/api/v1/bookings/{slot_id}", h.Booking)
	return mux, store
}

func do(mux http.Handler, method, target, body, email string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if email != "" {
		req.Header.Set(auth.HeaderUserEmail, email)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateBooking(t *testing.T) {
	mux, _ := newTestMux()

	rec := do(mux, http.MethodPost, "/api/v1/bookings",
		`{"start_time":"2025-04-20T10:00:00Z","end_time":"2025-04-20T11:00:00Z","participants":["Bob@Example.com","bob@example.com"]}`,
		"ada@example.com")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp bookingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SlotID == "" || resp.UserEmail != "ada@example.com" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Participants) != 2 || resp.Participants[0] != "ada@example.com" || resp.Participants[1] != "bob@example.com" {
		t.Fatalf("unexpected participants: %v", resp.Participants)
	}

	rec = do(mux, http.MethodPost, "/api/v1/bookings",
		`{"start_time":"2025-04-20T10:30:00Z","end_time":"2025-04-20T11:30:00Z","participants":[]}`,
		"bob@example.com")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bob@example.com") {
		t.Fatalf("conflict should name the participant: %s", rec.Body.String())
	}

	rec = do(mux, http.MethodGet, "/api/v1/bookings", "", "bob@example.com")
	var items []bookingResponse
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].SlotID != resp.SlotID || items[0].UserEmail != "ada@example.com" {
		t.Fatalf("unexpected list: %+v", items)
	}
}

func TestCreateBookingBadInput(t *testing.T) {
	mux, _ := newTestMux()
	cases := map[string]string{
		"malformed":       `{`,
		"inverted":        `{"start_time":"2025-04-20T11:00:00Z","end_time":"2025-04-20T10:00:00Z"}`,
		"bad participant": `{"start_time":"2025-04-20T10:00:00Z","end_time":"2025-04-20T11:00:00Z","participants":["nope"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(mux, http.MethodPost, "/api/v1/bookings", body, "ada@example.com")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}

	rec := do(mux, http.MethodPost, "/api/v1/bookings", `{}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCancelBooking(t *testing.T) {
	mux, store := newTestMux()
	rec := do(mux, http.MethodPost, "/api/v1/bookings",
		`{"start_time":"2025-04-20T10:00:00Z","end_time":"2025-04-20T11:00:00Z","participants":["bob@example.com"]}`,
		"ada@example.com")
	var resp bookingResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)

	rec = do(mux, http.MethodDelete, "/api/v1/bookings/"+resp.SlotID, "", "bob@example.com")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("participant must not cancel, got %d", rec.Code)
	}
	rec = do(mux, http.MethodDelete, "/api/v1/bookings/"+resp.SlotID, "", "ada@example.com")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	left, _ := store.ListReservations(t.Context(), "bob@example.com")
	if len(left) != 0 {
		t.Fatalf("expected reservations removed, got %d", len(left))
	}
}
