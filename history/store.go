// Package history implements the fixed-cadence snapshot collector, the
// bounded in-memory ring, the durable sqlite-backed store, and the
// downsampling read algorithm (C5).
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/glebarez/sqlite"

	"usdfcterminal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS metric_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL UNIQUE,
    tcr REAL NOT NULL,
    supply REAL NOT NULL,
    liquidity REAL NOT NULL,
    holders INTEGER NOT NULL,
    lend_apr REAL NOT NULL,
    borrow_apr REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_snapshots_timestamp ON metric_snapshots(timestamp);
`

// Store is the durable, single-writer-discipline snapshot store.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if absent) the sqlite database at path,
// creating its parent directory if needed, and applies the schema.
func OpenStore(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("database path must be configured")
	}
	if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts snapshot, replacing any existing row for the same
// timestamp, then sweeps rows outside the newest capacity window.
func (s *Store) Upsert(ctx context.Context, snapshot domain.MetricSnapshot, capacity int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not configured")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO metric_snapshots(timestamp, tcr, supply, liquidity, holders, lend_apr, borrow_apr)
        VALUES(?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(timestamp) DO UPDATE SET
            tcr=excluded.tcr, supply=excluded.supply, liquidity=excluded.liquidity,
            holders=excluded.holders, lend_apr=excluded.lend_apr, borrow_apr=excluded.borrow_apr
    `, snapshot.Timestamp, snapshot.TCR, snapshot.Supply, snapshot.Liquidity, snapshot.Holders, snapshot.LendAPR, snapshot.BorrowAPR)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return s.retentionSweep(ctx, capacity)
}

func (s *Store) retentionSweep(ctx context.Context, capacity int) error {
	if capacity <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
        DELETE FROM metric_snapshots
        WHERE timestamp NOT IN (
            SELECT timestamp FROM metric_snapshots ORDER BY timestamp DESC LIMIT ?
        )
    `, capacity)
	if err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}
	return nil
}

// LoadNewest loads the newest capacity rows, returned oldest-first, for
// restart hydration of the in-memory ring.
func (s *Store) LoadNewest(ctx context.Context, capacity int) ([]domain.MetricSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not configured")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT timestamp, tcr, supply, liquidity, holders, lend_apr, borrow_apr
        FROM metric_snapshots ORDER BY timestamp DESC LIMIT ?
    `, capacity)
	if err != nil {
		return nil, fmt.Errorf("query newest snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.MetricSnapshot
	for rows.Next() {
		var snapshot domain.MetricSnapshot
		if err := rows.Scan(&snapshot.Timestamp, &snapshot.TCR, &snapshot.Supply, &snapshot.Liquidity, &snapshot.Holders, &snapshot.LendAPR, &snapshot.BorrowAPR); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the current row count, for the invariant that durable
// row count never exceeds capacity.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metric_snapshots`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CheckHealth runs a no-op query to verify the durable store is
// reachable, for the health endpoint's durable-store probe.
func (s *Store) CheckHealth(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not configured")
	}
	var one int
	return s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}
