package tablestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS similarity_tables (
    id          BIGSERIAL PRIMARY KEY,
    threshold   DOUBLE PRECISION NOT NULL,
    doc_count   INTEGER NOT NULL,
    fingerprint TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE similarity_tables ADD COLUMN IF NOT EXISTS fingerprint TEXT NOT NULL DEFAULT '';
CREATE TABLE IF NOT EXISTS similarity_rows (
    table_id  BIGINT NOT NULL REFERENCES similarity_tables(id) ON DELETE CASCADE,
    doc_id    TEXT NOT NULL,
    neighbors JSONB NOT NULL,
    PRIMARY KEY (table_id, doc_id)
)`

// PostgresStore keeps tables in PostgreSQL. Each Save writes a new table
// and deletes older ones in the same transaction.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "table-postgres-store"),
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating similarity table schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, snap Snapshot) error {
	start := time.Now()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var tableID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO similarity_tables (threshold, doc_count, fingerprint, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
			snap.Threshold, snap.DocCount, snap.Fingerprint, snap.CreatedAt,
		).Scan(&tableID)
		if err != nil {
			return fmt.Errorf("inserting table header: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("similarity_rows", "table_id", "doc_id", "neighbors"))
		if err != nil {
			return fmt.Errorf("preparing row copy: %w", err)
		}
		for _, row := range snap.Rows {
			data, err := json.Marshal(row.Neighbors)
			if err != nil {
				stmt.Close()
				return fmt.Errorf("marshaling row %q: %w", row.DocID, err)
			}
			if _, err := stmt.ExecContext(ctx, tableID, row.DocID, string(data)); err != nil {
				stmt.Close()
				return fmt.Errorf("copying row %q: %w", row.DocID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing row copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("closing row copy: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM similarity_tables WHERE id <> $1`, tableID); err != nil {
			return fmt.Errorf("pruning old tables: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving similarity table: %w", err)
	}
	s.logger.Info("similarity table saved",
		"rows", len(snap.Rows),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (Snapshot, error) {
	var (
		snap    Snapshot
		tableID int64
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, threshold, doc_count, fingerprint, created_at FROM similarity_tables ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&tableID, &snap.Threshold, &snap.DocCount, &snap.Fingerprint, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoTable
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying latest table: %w", err)
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT doc_id, neighbors FROM similarity_rows WHERE table_id = $1 ORDER BY doc_id`,
		tableID,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying table rows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			row  ranker.TableRow
			data []byte
		)
		if err := rows.Scan(&row.DocID, &data); err != nil {
			return Snapshot{}, fmt.Errorf("scanning table row: %w", err)
		}
		if err := json.Unmarshal(data, &row.Neighbors); err != nil {
			s.logger.Warn("skipping corrupt table row", "doc_id", row.DocID, "error", err)
			continue
		}
		snap.Rows = append(snap.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("reading table rows: %w", err)
	}
	return snap, nil
}
