package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/timely/libs/db"
	"github.com/md-rashed-zaman/timely/services/auth-service/internal/outbox"
)

var ErrEmailTaken = errors.New("email already registered")

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

type UserRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewUserRepository(pool *db.Pool, outboxRepo *outbox.Repository) *UserRepository {
	return &UserRepository{pool: pool, outbox: outboxRepo}
}

// Register inserts the user and its registration event atomically.
// A duplicate email returns ErrEmailTaken.
func (r *UserRepository) Register(ctx context.Context, user User, evt outbox.Event) error {
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.CreateTx(ctx, tx, user); err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, user User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Email, user.Name, user.PasswordHash)
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, email, name, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// IsNotFound reports whether GetByEmail found no user.
func IsNotFound(err error) bool {
	return db.IsNotFound(err)
}
