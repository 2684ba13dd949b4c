package postgres

import (
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// newMockAdapter builds an Adapter over sqlmock with its hot-path statements
// prepared, mirroring what NewAdapter does after a real connection.
func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectPrepare(regexp.QuoteMeta(queryInsertReading))
	mock.ExpectPrepare(regexp.QuoteMeta(queryReadingExists))

	stmtInsert, err := db.Prepare(queryInsertReading)
	require.NoError(t, err)
	stmtExists, err := db.Prepare(queryReadingExists)
	require.NoError(t, err)

	adapter := &Adapter{
		db:                db,
		stmtInsertReading: stmtInsert,
		stmtReadingExists: stmtExists,
	}
	return adapter, mock, db
}

func strPtr(s string) *string     { return &s }
func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }
