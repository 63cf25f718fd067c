package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// sessionIDLength keeps ids URL-safe and hard to guess without being unwieldy
// in logs.
const sessionIDLength = 24

// PostgresRegistry persists sessions in the sessions table and resolves the
// owning user's area on validation.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

var _ Registry = (*PostgresRegistry)(nil)

func (r *PostgresRegistry) Validate(ctx context.Context, userID, sessionID string) (*Session, error) {
	s := &Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, s.device_id, u.area_id, s.created_at, s.expires_at
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.id = $1 AND s.user_id = $2
		   AND s.revoked_at IS NULL AND s.expires_at > now()`,
		sessionID, userID,
	).Scan(&s.ID, &s.UserID, &s.DeviceID, &s.AreaID, &s.CreatedAt, &s.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}
	return s, nil
}

func (r *PostgresRegistry) Create(ctx context.Context, userID, deviceID string, ttl time.Duration) (*Session, error) {
	id, err := gonanoid.New(sessionIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now().UTC()
	s := &Session{
		ID:        id,
		UserID:    userID,
		DeviceID:  deviceID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, device_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, s.DeviceID, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

func (r *PostgresRegistry) Revoke(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = now()
		 WHERE id = $1 AND revoked_at IS NULL`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) ActiveForDevice(ctx context.Context, userID, deviceID string) (*Session, error) {
	s := &Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, s.device_id, u.area_id, s.created_at, s.expires_at
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.user_id = $1 AND s.device_id = $2
		   AND s.revoked_at IS NULL AND s.expires_at > now()
		 ORDER BY s.created_at DESC
		 LIMIT 1`,
		userID, deviceID,
	).Scan(&s.ID, &s.UserID, &s.DeviceID, &s.AreaID, &s.CreatedAt, &s.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up device session: %w", err)
	}
	return s, nil
}
