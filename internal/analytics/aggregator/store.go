// Package aggregator persists periodic snapshots of resolution analytics to
// PostgreSQL.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS resolution_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    resolutions BIGINT NOT NULL,
    unresolved  BIGINT NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const defaultRetention = 30 * 24 * time.Hour

// Store persists analytics snapshots in PostgreSQL.
type Store struct {
	db        *postgres.Client
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore creates a new analytics persistence store.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:        db,
		retention: defaultRetention,
		logger:    slog.Default().With("component", "analytics-store"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the snapshot table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating resolution_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot persists a stats snapshot and prunes snapshots older than
// the retention window in the same transaction.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	now := s.now()
	var pruned int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resolution_snapshots (data, resolutions, unresolved, captured_at) VALUES ($1, $2, $3, $4)`,
			data, stats.TotalResolutions, stats.Unresolved, now,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM resolution_snapshots WHERE captured_at < $1`,
			now.Add(-s.retention),
		)
		if err != nil {
			return err
		}
		pruned, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Info("analytics snapshot saved",
		"total_resolutions", stats.TotalResolutions,
		"unresolved", stats.Unresolved,
		"pruned", pruned,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot. It returns nil, nil when
// no snapshot exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.Stats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM resolution_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var stats analytics.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns the last limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.Stats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM resolution_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.Stats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.Stats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}

	return snapshots, rows.Err()
}

// Snapshotter is the subset of Store used by RunPeriodicSave.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context, stats analytics.Stats) error
}

// RunPeriodicSave snapshots source every interval until ctx ends, then
// writes one final snapshot. It blocks; run it in its own goroutine.
func RunPeriodicSave(ctx context.Context, store Snapshotter, source analytics.StatsSource, interval time.Duration) {
	logger := slog.Default().With("component", "analytics-store")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("periodic snapshot started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			if err := store.SaveSnapshot(ctx, source.Stats()); err != nil {
				logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := store.SaveSnapshot(shutdownCtx, source.Stats()); err != nil {
				logger.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}
