package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTransaction(t *testing.T) {
	fnErr := errors.New("function failed")

	tests := []struct {
		name      string
		expect    func(mock sqlmock.Sqlmock)
		fn        TxFn
		wantErr   error
		wantInMsg string
	}{
		{
			name: "commits on success",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit()
			},
			fn: func(ctx context.Context, tx *sql.Tx) error { return nil },
		},
		{
			name: "rolls back on function error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			fn:      func(ctx context.Context, tx *sql.Tx) error { return fnErr },
			wantErr: fnErr,
		},
		{
			name: "begin failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("no connection"))
			},
			fn:        func(ctx context.Context, tx *sql.Tx) error { return nil },
			wantInMsg: "failed to begin transaction",
		},
		{
			name: "commit failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit().WillReturnError(errors.New("commit failed"))
			},
			fn:      func(ctx context.Context, tx *sql.Tx) error { return nil },
			wantErr: ErrTransactionFailed,
		},
		{
			name: "rollback failure keeps original error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback().WillReturnError(errors.New("rollback failed"))
			},
			fn:        func(ctx context.Context, tx *sql.Tx) error { return fnErr },
			wantErr:   fnErr,
			wantInMsg: "rollback failed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			tc.expect(mock)
			err = RunInTransaction(context.Background(), db, tc.fn)

			if tc.wantErr == nil && tc.wantInMsg == "" {
				assert.NoError(t, err)
			}
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			if tc.wantInMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantInMsg)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunInTransaction_Panic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_LogsOutcome(t *testing.T) {
	tests := []struct {
		name    string
		expect  func(mock sqlmock.Sqlmock)
		fn      TxFn
		wantLog string
	}{
		{
			name: "commit",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit()
			},
			fn:      func(ctx context.Context, tx *sql.Tx) error { return nil },
			wantLog: "transaction committed",
		},
		{
			name: "rollback",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			fn:      func(ctx context.Context, tx *sql.Tx) error { return errors.New("boom") },
			wantLog: "rolled back transaction due to error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tc.expect(mock)

			var buf bytes.Buffer
			l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			ctx := logger.WithLogger(context.Background(), l)

			_ = RunInTransaction(ctx, db, tc.fn)
			assert.Contains(t, buf.String(), tc.wantLog)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
