package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/timely/libs/auth"
	"github.com/md-rashed-zaman/timely/libs/httpx"
	"github.com/md-rashed-zaman/timely/services/notification-service/internal/storage"
)

type Lister interface {
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]storage.Record, error)
}

type NotificationsHandler struct {
	repo   Lister
	logger *slog.Logger
}

func NewNotificationsHandler(repo Lister, logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{repo: repo, logger: logger}
}

type notificationItem struct {
	ID        int64  `json:"id"`
	EventID   string `json:"event_id"`
	Kind      string `json:"kind"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// List returns the caller's own notifications, newest first.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := auth.IdentityFromHeaders(r.Header)
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.repo.ListByRecipient(r.Context(), id.Email, limit)
	if err != nil {
		h.logger.Error("list notifications failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]notificationItem, 0, len(records))
	for _, rec := range records {
		items = append(items, notificationItem{
			ID:        rec.ID,
			EventID:   rec.EventID,
			Kind:      rec.Kind,
			Subject:   rec.Subject,
			Status:    rec.Status,
			Error:     rec.Error,
			CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notifications": items})
}
