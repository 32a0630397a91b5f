package receipts

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/distro/internal/platform/db"
)

type postgresStore struct {
	dsn string
	// pool is lazily initialised on first Check call.
	pool *pgxpool.Pool
}

func newPostgresStore(dsn string) *postgresStore {
	return &postgresStore{dsn: dsn}
}

func (s *postgresStore) ensurePool(ctx context.Context) error {
	if s.pool != nil {
		return nil
	}
	pool, err := db.OpenDSN(ctx, s.dsn)
	if err != nil {
		return err
	}
	s.pool = pool
	return nil
}

// Check uses INSERT ... ON CONFLICT to atomically deduplicate.
// Table `webhook_events` must exist.
func (s *postgresStore) Check(ctx context.Context, eventID, eventType string) (bool, error) {
	if err := s.ensurePool(ctx); err != nil {
		return false, err
	}

	const q = `INSERT INTO webhook_events (event_id, event_type, received_at)
	           VALUES ($1, $2, now())
	           ON CONFLICT (event_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, eventID, eventType)
	if err != nil {
		return false, err
	}
	// RowsAffected == 0 means the row already existed (duplicate).
	return tag.RowsAffected() == 0, nil
}

func (s *postgresStore) MarkProcessed(ctx context.Context, eventID string) error {
	if err := s.ensurePool(ctx); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE webhook_events SET processed_at = now() WHERE event_id = $1`, eventID)
	return err
}
