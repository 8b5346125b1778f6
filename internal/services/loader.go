package services

import (
	"context"
	"errors"
	"fmt"

	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"

	"github.com/rs/zerolog"
)

// loader runs screen queries. A warehouse that cannot be reached fails the
// whole screen; any other query failure is logged and yields an empty frame
// so the affected panel shows its empty state.
type loader struct {
	warehouse database.Warehouse
	log       zerolog.Logger
}

func (l loader) dialect() query.Dialect {
	return l.warehouse.Dialect()
}

func (l loader) load(ctx context.Context, name string, q *query.Select) (*models.Frame, error) {
	sql, args, err := q.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", name, err)
	}

	frame, err := l.warehouse.Query(ctx, sql, args...)
	if err != nil {
		if errors.Is(err, database.ErrUnavailable) {
			return nil, err
		}
		l.log.Warn().Err(err).Str("query", name).Msg("query failed, showing empty state")
		return models.NewFrame(), nil
	}
	return frame, nil
}
