package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"
)

// OpenFunc connects to a warehouse.
type OpenFunc func(ctx context.Context) (Warehouse, error)

// LazyWarehouse connects on first use. While the warehouse cannot be reached
// every call fails with ErrUnavailable, and the next call connects again, the
// way reloading the page reconnects.
type LazyWarehouse struct {
	open    OpenFunc
	dialect query.Dialect

	mu sync.Mutex
	w  Warehouse
}

func NewLazyWarehouse(dialect query.Dialect, open OpenFunc) *LazyWarehouse {
	return &LazyWarehouse{open: open, dialect: dialect}
}

func (l *LazyWarehouse) get(ctx context.Context) (Warehouse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w != nil {
		return l.w, nil
	}
	w, err := l.open(ctx)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	l.w = w
	return w, nil
}

func (l *LazyWarehouse) Query(ctx context.Context, sql string, args ...any) (*models.Frame, error) {
	w, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return w.Query(ctx, sql, args...)
}

func (l *LazyWarehouse) Ping(ctx context.Context) error {
	w, err := l.get(ctx)
	if err != nil {
		return err
	}
	return w.Ping(ctx)
}

func (l *LazyWarehouse) Dialect() query.Dialect {
	return l.dialect
}

func (l *LazyWarehouse) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return nil
	}
	err := l.w.Close()
	l.w = nil
	return err
}
