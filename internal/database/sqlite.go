package database

import (
	"context"
	"database/sql"
	"fmt"

	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLDB serves the dashboards from a database/sql handle. It backs local
// demo warehouses stored in a single SQLite file.
type SQLDB struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewSQLiteDB(ctx context.Context, path string, log zerolog.Logger) (*SQLDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open SQLite %s: %w", ErrUnavailable, path, err)
	}
	// one connection keeps ":memory:" databases alive across statements
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping SQLite: %w", ErrUnavailable, err)
	}

	log = log.With().Str("component", "sqlite").Logger()
	log.Info().Str("path", path).Msg("opened SQLite warehouse")
	return &SQLDB{db: db, log: log}, nil
}

func (s *SQLDB) Query(ctx context.Context, stmt string, args ...any) (*models.Frame, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(err, "failed to query SQLite")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classify(err, "failed to read SQLite columns")
	}

	frame := models.NewFrame(cols...)
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, classify(err, "failed to scan SQLite row")
		}
		frame.Append(values...)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to read SQLite rows")
	}
	return frame, nil
}

// Exec runs a statement that returns no rows, such as seeding a demo file.
func (s *SQLDB) Exec(ctx context.Context, stmt string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return classify(err, "failed to exec SQLite statement")
	}
	return nil
}

func (s *SQLDB) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: failed to ping SQLite: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLDB) Dialect() query.Dialect {
	return query.Question
}

func (s *SQLDB) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite: %w", err)
	}
	return nil
}
