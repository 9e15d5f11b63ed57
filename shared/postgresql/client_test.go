package postgresql

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/billing-inspector/shared/logger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T, monitorPings bool) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(monitorPings))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewClientFromDB(sqlx.NewDb(db, "postgres"), logger.NewNop()), mock
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{Host: "localhost", Port: 5432, User: "inspector", Password: "pw", Database: "runs"}
	assert.Equal(t, "host=localhost port=5432 user=inspector password=pw dbname=runs sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestClient_Migrate(t *testing.T) {
	client, mock := newMockClient(t, false)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, client.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_MigrateError(t *testing.T) {
	client, mock := newMockClient(t, false)
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err := client.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to migrate run store")
}

func TestClient_HealthCheck(t *testing.T) {
	client, mock := newMockClient(t, true)
	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, client.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_HealthCheckPingFails(t *testing.T) {
	client, mock := newMockClient(t, true)
	mock.ExpectPing().WillReturnError(errors.New("connection reset"))

	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database health check failed")
}
