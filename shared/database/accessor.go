package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Supported database types
const (
	TypeMySQL    = "mysql"
	TypeKingbase = "kingbase"
	TypePostgres = "postgres"
)

// ErrUnsupportedType is returned for a database type that has no driver
var ErrUnsupportedType = errors.New("unsupported database type")

// Config holds the connection parameters of one branch database
type Config struct {
	Type     string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Opener opens a connection for the given driver and DSN
type Opener func(ctx context.Context, driverName, dsn string) (*sqlx.DB, error)

// Accessor opens a fresh connection for every query and always closes it.
// There is no pooling across calls.
type Accessor struct {
	open    Opener
	logger  *slog.Logger
	timeout time.Duration
}

// NewAccessor creates an accessor backed by sqlx
func NewAccessor(logger *slog.Logger, timeout time.Duration) *Accessor {
	return NewAccessorWithOpener(logger, timeout, sqlx.ConnectContext)
}

// NewAccessorWithOpener creates an accessor with a custom connection opener
func NewAccessorWithOpener(logger *slog.Logger, timeout time.Duration, open Opener) *Accessor {
	return &Accessor{
		open:    open,
		logger:  logger,
		timeout: timeout,
	}
}

// DriverName maps a configured database type to a registered sql driver
func DriverName(dbType string) (string, error) {
	switch dbType {
	case TypeMySQL:
		return "mysql", nil
	case TypeKingbase, TypePostgres, "":
		return "postgres", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, dbType)
	}
}

// DSN builds the driver specific connection string
func DSN(cfg Config) (string, error) {
	driver, err := DriverName(cfg.Type)
	if err != nil {
		return "", err
	}

	if driver == "mysql" {
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Name
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN(), nil
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		sslMode,
	), nil
}

// Query runs one statement against the database described by cfg and returns
// every row as a column to value mapping. Placeholders are written as `?` and
// rebound for the target driver. A query without args runs exactly as written.
func (a *Accessor) Query(ctx context.Context, cfg Config, query string, args ...any) ([]Row, error) {
	driver, err := DriverName(cfg.Type)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	db, err := a.open(ctx, driver, dsn)
	if err != nil {
		a.logger.Error("Failed to connect to database",
			slog.String("host", cfg.Host),
			slog.String("database", cfg.Name),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to connect to %s/%s: %w", cfg.Host, cfg.Name, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			a.logger.Warn("Failed to close database connection", slog.Any("error", cerr))
		}
	}()

	bound := query
	if len(args) > 0 {
		bound = db.Rebind(query)
	}
	a.logger.Info("Executing query",
		slog.String("database", cfg.Name),
		slog.String("query", bound),
	)

	rows, err := db.QueryxContext(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, normalize(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	a.logger.Debug("Query finished",
		slog.String("database", cfg.Name),
		slog.Int("rows", len(result)),
	)

	return result, nil
}
