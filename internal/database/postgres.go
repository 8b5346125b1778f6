package database

import (
	"context"
	"errors"
	"fmt"

	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresDB serves the dashboards from a Postgres-compatible warehouse.
type PostgresDB struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPostgresDB(ctx context.Context, databaseURL string, log zerolog.Logger) (*PostgresDB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create connection pool: %w", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrUnavailable, err)
	}

	log = log.With().Str("component", "postgres").Logger()
	log.Info().Str("host", cfg.ConnConfig.Host).Msg("connected to Postgres")
	return &PostgresDB{pool: pool, log: log}, nil
}

func (db *PostgresDB) Query(ctx context.Context, sql string, args ...any) (*models.Frame, error) {
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, db.classify(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, fd := range fields {
		cols[i] = fd.Name
	}

	frame := models.NewFrame(cols...)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, db.classify(err)
		}
		for i, v := range values {
			values[i] = normalizePG(v)
		}
		frame.Append(values...)
	}
	if err := rows.Err(); err != nil {
		return nil, db.classify(err)
	}
	return frame, nil
}

func (db *PostgresDB) classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s (%s)", ErrMalformedQuery, pgErr.Message, pgErr.Code)
	}
	return classify(err, "failed to query Postgres")
}

// normalizePG turns pgtype wrappers into plain Go values.
func normalizePG(v any) any {
	switch n := v.(type) {
	case pgtype.Numeric:
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", n[0:4], n[4:6], n[6:8], n[8:10], n[10:16])
	}
	return v
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping database: %w", ErrUnavailable, err)
	}
	return nil
}

func (db *PostgresDB) Dialect() query.Dialect {
	return query.Dollar
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	db.log.Info().Msg("Postgres pool closed")
	return nil
}
