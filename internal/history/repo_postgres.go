package history

import (
	"context"
	"database/sql"
	"fmt"

	"homecall/pkg/utils"
)

// PostgresRepo persists call history in a call_history table.
//
// The table is insert-only; ordering relies on (created_at, id) so entries
// written within the same clock tick still list deterministically.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// EnsureSchema creates the call_history table and its ordering index.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS call_history (
				id               TEXT PRIMARY KEY,
				peer_id          TEXT NOT NULL,
				peer_name        TEXT NOT NULL DEFAULT '',
				modality         TEXT NOT NULL,
				direction        TEXT NOT NULL,
				status           TEXT NOT NULL,
				duration_seconds INT  NOT NULL DEFAULT 0,
				created_at       TIMESTAMPTZ NOT NULL
			)`); err != nil {
			return fmt.Errorf("history: create table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			CREATE INDEX IF NOT EXISTS call_history_created_at_idx
			ON call_history (created_at DESC, id DESC)`); err != nil {
			return fmt.Errorf("history: create index: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_history
			(id, peer_id, peer_name, modality, direction, status, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.PeerID, e.PeerName, e.Modality, e.Direction, string(e.Status), e.DurationSeconds, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("history: insert entry: %w", err)
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, peer_id, peer_name, modality, direction, status, duration_seconds, created_at
		FROM call_history
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("history: list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.PeerID, &e.PeerName, &e.Modality, &e.Direction, &status, &e.DurationSeconds, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list entries: %w", err)
	}
	return out, nil
}
