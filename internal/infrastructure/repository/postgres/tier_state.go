package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// TierStateStore persists the last routed model tier per session so the
// hysteresis policy survives process restarts.
type TierStateStore struct {
	db *sql.DB
}

func NewTierStateStore(db *sql.DB) *TierStateStore {
	return &TierStateStore{db: db}
}

func (s *TierStateStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tier_state (
	session_id TEXT PRIMARY KEY,
	tier       TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)
`)
	if err != nil {
		return fmt.Errorf("ensure tier_state schema: %w", err)
	}
	return nil
}

func (s *TierStateStore) LastTier(ctx context.Context, sessionID string) (domain.ModelTier, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT tier
FROM tier_state
WHERE session_id = $1
`, sessionID)

	var tier string
	if err := row.Scan(&tier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("last tier select: %w", err)
	}
	return domain.ModelTier(tier), nil
}

func (s *TierStateStore) SaveTier(ctx context.Context, sessionID string, tier domain.ModelTier) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tier_state (session_id, tier, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (session_id) DO UPDATE SET tier = EXCLUDED.tier, updated_at = EXCLUDED.updated_at
`, sessionID, string(tier), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save tier upsert: %w", err)
	}
	return nil
}
