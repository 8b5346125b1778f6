package services

import (
	"context"
	"sync"
	"time"

	"fleet-dashboard/internal/models"

	"github.com/rs/zerolog"
)

// Invalidator drops memoized warehouse results.
type Invalidator interface {
	Invalidate() int
}

// RefreshService invalidates the query cache when the user asks for fresh
// data or when the scoring pipeline reports a completed batch.
type RefreshService struct {
	cache Invalidator
	log   zerolog.Logger

	// Input channel (written by the MQTT subscriber)
	ScoringChan chan *models.ScoringEvent

	mu          sync.RWMutex
	refreshes   uint64
	lastRefresh time.Time
	lastScoring *models.ScoringEvent
}

// RefreshServiceConfig holds configuration for the refresh service
type RefreshServiceConfig struct {
	ChannelSize int
}

// DefaultRefreshServiceConfig returns default configuration
func DefaultRefreshServiceConfig() RefreshServiceConfig {
	return RefreshServiceConfig{
		ChannelSize: 50,
	}
}

// RefreshStatus reports cache refresh activity.
type RefreshStatus struct {
	Refreshes   uint64               `json:"refreshes"`
	LastRefresh time.Time            `json:"last_refresh"`
	LastScoring *models.ScoringEvent `json:"last_scoring,omitempty"`
}

func NewRefreshService(cache Invalidator, config RefreshServiceConfig, log zerolog.Logger) *RefreshService {
	return &RefreshService{
		cache:       cache,
		log:         log.With().Str("component", "refresh").Logger(),
		ScoringChan: make(chan *models.ScoringEvent, config.ChannelSize),
	}
}

// Start processes scoring events until ctx is cancelled or the channel is closed.
func (rs *RefreshService) Start(ctx context.Context) {
	rs.log.Info().Msg("refresh service starting")

	for {
		select {
		case <-ctx.Done():
			rs.log.Info().Msg("refresh service shutting down")
			return

		case event, ok := <-rs.ScoringChan:
			if !ok {
				rs.log.Info().Msg("scoring channel closed, shutting down")
				return
			}
			rs.handleScoring(event)
		}
	}
}

func (rs *RefreshService) handleScoring(event *models.ScoringEvent) {
	rs.mu.Lock()
	rs.lastScoring = event
	rs.mu.Unlock()

	dropped := rs.Refresh("scoring batch " + event.BatchID)
	rs.log.Info().
		Str("batch_id", event.BatchID).
		Str("pipeline", event.Pipeline).
		Int("devices_scored", event.DevicesScored).
		Int("dropped", dropped).
		Msg("scores updated, cache invalidated")
}

// Refresh drops every memoized result so the next render reads the
// warehouse again. It returns how many results were dropped.
func (rs *RefreshService) Refresh(reason string) int {
	dropped := rs.cache.Invalidate()

	rs.mu.Lock()
	rs.refreshes++
	rs.lastRefresh = time.Now()
	rs.mu.Unlock()

	rs.log.Debug().Str("reason", reason).Int("dropped", dropped).Msg("cache invalidated")
	return dropped
}

func (rs *RefreshService) Status() RefreshStatus {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	return RefreshStatus{
		Refreshes:   rs.refreshes,
		LastRefresh: rs.lastRefresh,
		LastScoring: rs.lastScoring,
	}
}
