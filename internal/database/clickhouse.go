package database

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"
)

type ClickHouseDB struct {
	conn driver.Conn
	log  zerolog.Logger
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(ctx context.Context, addr, database, username, password string, log zerolog.Logger) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to ClickHouse: %w", ErrUnavailable, err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to ping ClickHouse: %w", ErrUnavailable, err)
	}

	log = log.With().Str("component", "clickhouse").Logger()
	log.Info().Str("addr", addr).Str("database", database).Msg("connected to ClickHouse")

	return &ClickHouseDB{conn: conn, log: log}, nil
}

// InitSchema creates the reference tables and dashboard views if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, stmt := range AllTables() {
		if err := db.conn.Exec(ctx, stmt.SQL); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.Name, err)
		}
	}
	for _, stmt := range AllViews() {
		if err := db.conn.Exec(ctx, stmt.SQL); err != nil {
			return fmt.Errorf("failed to create view %s: %w", stmt.Name, err)
		}
	}

	db.log.Info().Int("tables", len(AllTables())).Int("views", len(AllViews())).Msg("schema initialized")
	return nil
}

// Query runs a statement and materializes every row.
func (db *ClickHouseDB) Query(ctx context.Context, sql string, args ...any) (*models.Frame, error) {
	start := time.Now()
	rows, err := db.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err, "failed to query ClickHouse")
	}
	defer rows.Close()

	types := rows.ColumnTypes()
	frame := models.NewFrame(rows.Columns()...)
	for rows.Next() {
		dest := make([]any, len(types))
		for i, ct := range types {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, classify(err, "failed to scan ClickHouse row")
		}
		values := make([]any, len(dest))
		for i, d := range dest {
			values[i] = reflect.ValueOf(d).Elem().Interface()
		}
		frame.Append(values...)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to read ClickHouse rows")
	}

	db.log.Debug().Int("rows", frame.Len()).Dur("elapsed", time.Since(start)).Msg("query served")
	return frame, nil
}

func (db *ClickHouseDB) Ping(ctx context.Context) error {
	if err := db.conn.Ping(ctx); err != nil {
		return fmt.Errorf("%w: failed to ping ClickHouse: %w", ErrUnavailable, err)
	}
	return nil
}

func (db *ClickHouseDB) Dialect() query.Dialect {
	return query.Question
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		db.log.Info().Msg("ClickHouse connection closed")
	}
	return nil
}
