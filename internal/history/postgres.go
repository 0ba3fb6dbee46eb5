package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptoquote/internal/quote"
)

const schema = `
CREATE TABLE IF NOT EXISTS quote_history (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT        NOT NULL,
	input       TEXT        NOT NULL,
	coin_id     TEXT,
	status      TEXT        NOT NULL,
	price       NUMERIC,
	error       TEXT,
	recorded_at TIMESTAMPTZ NOT NULL
)`

const insertQuote = `
INSERT INTO quote_history (run_id, input, coin_id, status, price, error, recorded_at)
VALUES (:run_id, :input, :coin_id, :status, :price, :error, :recorded_at)`

type row struct {
	RunID      string         `db:"run_id"`
	Input      string         `db:"input"`
	CoinID     sql.NullString `db:"coin_id"`
	Status     string         `db:"status"`
	Price      sql.NullString `db:"price"`
	Error      sql.NullString `db:"error"`
	RecordedAt time.Time      `db:"recorded_at"`
}

// PostgresRecorder appends quotes to the quote_history table.
type PostgresRecorder struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresRecorder connects to dsn and makes sure the table exists.
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history db: %w", err)
	}
	r, err := newPostgresRecorder(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func newPostgresRecorder(ctx context.Context, db *sqlx.DB) (*PostgresRecorder, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create quote_history: %w", err)
	}
	return &PostgresRecorder{db: db, now: time.Now}, nil
}

// Record inserts one row per quote in a single transaction.
func (r *PostgresRecorder) Record(ctx context.Context, runID string, quotes []quote.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	recordedAt := r.now().UTC()
	for _, q := range quotes {
		if _, err := tx.NamedExecContext(ctx, insertQuote, toRow(runID, q, recordedAt)); err != nil {
			return fmt.Errorf("insert quote %q: %w", q.Input, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history tx: %w", err)
	}

	log.Debug().Str("run_id", runID).Int("quotes", len(quotes)).Msg("Quote history recorded")
	return nil
}

func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}

func toRow(runID string, q quote.Quote, recordedAt time.Time) row {
	rw := row{
		RunID:      runID,
		Input:      q.Input,
		CoinID:     sql.NullString{String: q.CoinID, Valid: q.CoinID != ""},
		Status:     q.Status.String(),
		RecordedAt: recordedAt,
	}
	if q.Status == quote.StatusPriced {
		rw.Price = sql.NullString{String: q.Price.String(), Valid: true}
	}
	if q.Err != nil {
		rw.Error = sql.NullString{String: q.Err.Error(), Valid: true}
	}
	return rw
}
