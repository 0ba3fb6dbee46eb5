package history

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptoquote/internal/quote"
)

func newMockRecorder(t *testing.T) (*PostgresRecorder, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS quote_history").WillReturnResult(sqlmock.NewResult(0, 0))
	r, err := newPostgresRecorder(context.Background(), sqlx.NewDb(mockDB, "postgres"))
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return r, mock
}

func TestPostgresRecorder_Record(t *testing.T) {
	r, mock := newMockRecorder(t)
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	quotes := []quote.Quote{
		{Input: "bitcoin", CoinID: "bitcoin", Status: quote.StatusPriced, Price: decimal.RequireFromString("43000.1")},
		{Input: "notacoin", Status: quote.StatusNotFound},
		{Input: "eth", CoinID: "ethereum", Status: quote.StatusTransportError, Err: errors.New("HTTP 503")},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO quote_history").
		WithArgs("run-1", "bitcoin", "bitcoin", "priced", "43000.1", nil, at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO quote_history").
		WithArgs("run-1", "notacoin", nil, "not_found", nil, nil, at).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO quote_history").
		WithArgs("run-1", "eth", "ethereum", "transport_error", nil, "HTTP 503", at).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	require.NoError(t, r.Record(context.Background(), "run-1", quotes))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_RollsBackOnError(t *testing.T) {
	r, mock := newMockRecorder(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO quote_history").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := r.Record(context.Background(), "run-2", []quote.Quote{{Input: "btc", Status: quote.StatusNotFound}})
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_EmptyBatch(t *testing.T) {
	r, mock := newMockRecorder(t)

	require.NoError(t, r.Record(context.Background(), "run-3", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.Record(context.Background(), "run", []quote.Quote{{Input: "btc"}}))
	assert.NoError(t, r.Close())
}
