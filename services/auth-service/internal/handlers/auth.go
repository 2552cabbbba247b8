package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/timely/libs/auth"
	"github.com/md-rashed-zaman/timely/libs/httpx"
	"github.com/md-rashed-zaman/timely/libs/validate"
	"github.com/md-rashed-zaman/timely/services/auth-service/internal/audit"
	"github.com/md-rashed-zaman/timely/services/auth-service/internal/outbox"
	"github.com/md-rashed-zaman/timely/services/auth-service/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type Users interface {
	Register(ctx context.Context, user storage.User, evt outbox.Event) error
	GetByEmail(ctx context.Context, email string) (storage.User, error)
}

type Revocations interface {
	auth.RevocationChecker
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Config struct {
	Secret   string
	TokenTTL time.Duration
	// AdminKey guards the audit listing. Empty disables it.
	AdminKey string
}

type AuthHandler struct {
	users    Users
	revoked  Revocations
	audit    Auditor
	verifier *auth.LocalVerifier
	cfg      Config
	logger   *slog.Logger
}

func NewAuthHandler(users Users, revoked Revocations, auditor Auditor, cfg Config, logger *slog.Logger) *AuthHandler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &AuthHandler{
		users:    users,
		revoked:  revoked,
		audit:    auditor,
		verifier: auth.NewLocalVerifier(cfg.Secret, revoked),
		cfg:      cfg,
		logger:   logger,
	}
}

// Verifier is the token check shared by the HTTP and gRPC surfaces.
func (h *AuthHandler) Verifier() auth.Verifier {
	return h.verifier
}

type registerRequest struct {
	Name     string `json:"name" valid:"required"`
	Email    string `json:"email" valid:"email,required"`
	Password string `json:"password" valid:"required"`
}

type loginRequest struct {
	Email    string `json:"email" valid:"email,required"`
	Password string `json:"password" valid:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        userResponse `json:"user"`
}

type identityResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct("auth-service", "Register", &req); err != nil {
		http.Error(w, "name, email and password required", http.StatusBadRequest)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	user := storage.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	payload, err := json.Marshal(map[string]any{
		"user": userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
	})
	if err != nil {
		http.Error(w, "failed to marshal user event", http.StatusInternalServerError)
		return
	}
	err = h.users.Register(r.Context(), user, outbox.Event{
		AggregateType: "user",
		AggregateID:   user.ID,
		EventType:     outbox.EventUserRegistered,
		Payload:       payload,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.logger.Error("register failed", "err", err)
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	h.writeToken(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct("auth-service", "Login", &req); err != nil {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error("user lookup failed", "err", err)
		http.Error(w, "failed to lookup user", http.StatusInternalServerError)
		return
	}
	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	h.record(r.Context(), audit.Entry{Action: audit.ActionLogin, ActorID: user.ID})
	h.writeToken(w, http.StatusOK, user)
}

// Logout revokes the presented access token by its jti until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.revoked.Revoke(r.Context(), id.TokenID, id.UserID, id.ExpiresAt); err != nil {
		h.logger.Error("token revoke failed", "err", err)
		http.Error(w, "failed to revoke token", http.StatusInternalServerError)
		return
	}
	h.record(r.Context(), audit.Entry{Action: audit.ActionLogout, ActorID: id.UserID, Metadata: map[string]any{"jti": id.TokenID}})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeIdentity(w, r)
}

// Verify is the HTTP form of the token check used by the gateway.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeIdentity(w, r)
}

func (h *AuthHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reqKey := r.Header.Get("X-Admin-Key")
	if h.cfg.AdminKey == "" || reqKey != h.cfg.AdminKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	events, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to load audit events", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, events)
}

func (h *AuthHandler) writeIdentity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	resp := identityResponse{UserID: id.UserID, Email: id.Email, Name: id.Name}
	if !id.ExpiresAt.IsZero() {
		resp.ExpiresAt = id.ExpiresAt.Format(time.RFC3339)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	token, ok := auth.BearerToken(r)
	if !ok {
		http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
		return auth.Identity{}, false
	}
	id, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return auth.Identity{}, false
		}
		h.logger.Error("token check failed", "err", err)
		http.Error(w, "token check unavailable", http.StatusServiceUnavailable)
		return auth.Identity{}, false
	}
	return id, true
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, status int, user storage.User) {
	token, err := auth.SignHS256(auth.NewClaims(auth.Identity{UserID: user.ID, Email: user.Email, Name: user.Name}, h.cfg.TokenTTL), h.cfg.Secret)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, status, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.cfg.TokenTTL / time.Second),
		User:        userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

// record is best effort; a missing audit row never fails the request.
func (h *AuthHandler) record(ctx context.Context, e audit.Entry) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(ctx, e); err != nil {
		h.logger.Warn("audit record failed", "err", err, "action", e.Action)
	}
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}
