package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/billing-inspector/shared/logger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockAccessor(t *testing.T, driverName string) (sqlmock.Sqlmock, *Accessor, *string) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	var gotDriver string
	accessor := NewAccessorWithOpener(logger.NewNop(), time.Second, func(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
		gotDriver = driver
		return sqlx.NewDb(db, driverName), nil
	})

	return mock, accessor, &gotDriver
}

func TestDriverName(t *testing.T) {
	tests := []struct {
		dbType  string
		want    string
		wantErr bool
	}{
		{dbType: "mysql", want: "mysql"},
		{dbType: "kingbase", want: "postgres"},
		{dbType: "postgres", want: "postgres"},
		{dbType: "", want: "postgres"},
		{dbType: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			got, err := DriverName(tt.dbType)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDSN(t *testing.T) {
	t.Run("postgres family", func(t *testing.T) {
		dsn, err := DSN(Config{Type: "kingbase", Host: "10.0.0.1", Port: 54321, User: "u", Password: "p", Name: "revenue"})
		require.NoError(t, err)
		assert.Equal(t, "host=10.0.0.1 port=54321 user=u password=p dbname=revenue sslmode=disable", dsn)
	})

	t.Run("mysql", func(t *testing.T) {
		dsn, err := DSN(Config{Type: "mysql", Host: "db.local", Port: 3306, User: "u", Password: "p", Name: "revenue"})
		require.NoError(t, err)
		assert.Contains(t, dsn, "u:p@tcp(db.local:3306)/revenue")
		assert.Contains(t, dsn, "charset=utf8mb4")
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := DSN(Config{Type: "sqlserver"})
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})
}

func TestAccessor_QueryReturnsRowsAndCloses(t *testing.T) {
	mock, accessor, gotDriver := setupMockAccessor(t, "postgres")

	rows := sqlmock.NewRows([]string{"param_code", "param_state", "param_value"}).
		AddRow("0125", "Y", []byte("2")).
		AddRow("0126", "Y", "3")
	mock.ExpectQuery("SELECT param_code, param_state, param_value FROM sys_param WHERE param_code = $1").
		WithArgs("0125").
		WillReturnRows(rows)
	mock.ExpectClose()

	result, err := accessor.Query(context.Background(), Config{Type: "postgres"},
		"SELECT param_code, param_state, param_value FROM sys_param WHERE param_code = ?", "0125")

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "postgres", *gotDriver)
	assert.Equal(t, "0125", result[0].String("param_code"))
	assert.Equal(t, "2", result[0]["param_value"])
	assert.Equal(t, "3", result[1].String("param_value"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_QueryWithoutArgsRunsVerbatim(t *testing.T) {
	mock, accessor, _ := setupMockAccessor(t, "postgres")

	query := "SELECT count(*) AS count FROM bill WHERE note = 'why?' AND attrs ? 'k'"
	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectClose()

	result, err := accessor.Query(context.Background(), Config{Type: "kingbase"}, query)

	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, int64(7), result[0].Int64("count", -1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_QueryErrorStillCloses(t *testing.T) {
	mock, accessor, _ := setupMockAccessor(t, "mysql")

	mock.ExpectQuery("select 1").WillReturnError(errors.New("connection reset"))
	mock.ExpectClose()

	_, err := accessor.Query(context.Background(), Config{Type: "mysql"}, "select 1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute query")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessor_ConnectFailure(t *testing.T) {
	accessor := NewAccessorWithOpener(logger.NewNop(), 0, func(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	_, err := accessor.Query(context.Background(), Config{Host: "h", Name: "n"}, "select 1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to h/n")
}

func TestAccessor_UnsupportedTypeNeverConnects(t *testing.T) {
	called := false
	accessor := NewAccessorWithOpener(logger.NewNop(), 0, func(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
		called = true
		return nil, nil
	})

	_, err := accessor.Query(context.Background(), Config{Type: "db2"}, "select 1")

	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.False(t, called)
}

func TestRow_Conversions(t *testing.T) {
	row := Row{
		"cal_day": time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
		"count":   int64(139930),
		"text":    "42",
		"bad":     "n/a",
		"null":    nil,
	}

	assert.Equal(t, "2025-10-03", row.String("cal_day"))
	assert.Equal(t, "139930", row.String("count"))
	assert.Equal(t, "", row.String("null"))
	assert.Equal(t, int64(139930), row.Int64("count", -1))
	assert.Equal(t, int64(42), row.Int64("text", -1))
	assert.Equal(t, int64(-1), row.Int64("bad", -1))
	assert.Equal(t, int64(-1), row.Int64("missing", -1))
	assert.True(t, row.Has("null"))
	assert.False(t, row.Has("missing"))
}
