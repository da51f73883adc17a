package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"authsvc/internal/domain/models"
	"authsvc/internal/storage"
	"authsvc/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type Storage struct {
	db *sql.DB
}

// New connects to dsn and applies the embedded goose migrations.
func New(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", op, err)
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already opened handle without running migrations.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.postgres.SaveUser"

	const q = `INSERT INTO users (username, pass_hash, role) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, q, user.Username, user.PassHash, user.Role); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) User(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.postgres.User"

	const q = `SELECT username, pass_hash, role FROM users WHERE username = $1`

	var user models.User
	if err := s.db.QueryRowContext(ctx, q, username).Scan(&user.Username, &user.PassHash, &user.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (s *Storage) UserExists(ctx context.Context, username string) (bool, error) {
	const op = "storage.postgres.UserExists"

	const q = `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, q, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (s *Storage) SaveRefreshToken(ctx context.Context, token models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	const q = `
		INSERT INTO refresh_tokens (username, token, expiry_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET token = EXCLUDED.token, expiry_date = EXCLUDED.expiry_date
	`
	if _, err := s.db.ExecContext(ctx, q, token.Username, token.Token, token.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) RefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshToken"

	const q = `SELECT username, token, expiry_date FROM refresh_tokens WHERE token = $1`

	var rt models.RefreshToken
	if err := s.db.QueryRowContext(ctx, q, token).Scan(&rt.Username, &rt.Token, &rt.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rt.ExpiresAt = rt.ExpiresAt.UTC()

	return &rt, nil
}

func (s *Storage) DeleteRefreshToken(ctx context.Context, username string) error {
	const op = "storage.postgres.DeleteRefreshToken"

	if _, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE username = $1`, username); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
