package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"
	"fleet-dashboard/pkg/config"

	"github.com/rs/zerolog"
)

var (
	// ErrUnavailable means the warehouse could not be reached. It is fatal to a page.
	ErrUnavailable = errors.New("warehouse unavailable")
	// ErrMalformedQuery means the warehouse rejected a statement.
	ErrMalformedQuery = errors.New("malformed query")
)

// Remediation is shown to users when the warehouse session cannot be obtained.
const Remediation = "Could not connect to the data warehouse. Check the warehouse settings " +
	"(WAREHOUSE_DRIVER and its connection variables), confirm the warehouse is running, " +
	"then reload the page."

// Warehouse runs read-only statements and returns rectangular results.
type Warehouse interface {
	Query(ctx context.Context, sql string, args ...any) (*models.Frame, error)
	Ping(ctx context.Context) error
	Dialect() query.Dialect
	Close() error
}

// DialectFor returns the placeholder style of a warehouse driver.
func DialectFor(driver string) query.Dialect {
	if driver == config.DriverPostgres {
		return query.Dollar
	}
	return query.Question
}

// Open connects to the warehouse selected by cfg.WarehouseDriver.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Warehouse, error) {
	switch cfg.WarehouseDriver {
	case config.DriverClickHouse:
		db, err := NewClickHouseDB(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePass, log)
		if err != nil {
			return nil, err
		}
		if cfg.WarehouseInitSchema {
			if err := db.InitSchema(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to initialize schema: %w", err)
			}
		}
		return db, nil
	case config.DriverPostgres:
		return NewPostgresDB(ctx, cfg.PostgresURL, log)
	case config.DriverSQLite:
		db, err := NewSQLiteDB(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if cfg.WarehouseInitSchema {
			if err := db.InitSchema(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to initialize schema: %w", err)
			}
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown warehouse driver %q", cfg.WarehouseDriver)
	}
}

// unavailable reports transport-level failures that no statement change can fix.
func unavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func classify(err error, what string) error {
	if unavailable(err) {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, what, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrMalformedQuery, what, err)
}
