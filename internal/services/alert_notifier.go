package services

import (
	"context"
	"fmt"
	"time"

	"fleet-dashboard/internal/models"
)

// ChannelNotifier hands fleet alerts to the MQTT publisher through a channel.
type ChannelNotifier struct {
	// Output channel (read by the MQTT publisher)
	AlertChan chan *models.FleetAlert

	sendTimeout time.Duration
}

// ChannelNotifierConfig holds configuration for the alert channel
type ChannelNotifierConfig struct {
	ChannelSize int
	SendTimeout time.Duration
}

// DefaultChannelNotifierConfig returns default configuration
func DefaultChannelNotifierConfig() ChannelNotifierConfig {
	return ChannelNotifierConfig{
		ChannelSize: 20,
		SendTimeout: time.Second,
	}
}

func NewChannelNotifier(config ChannelNotifierConfig) *ChannelNotifier {
	return &ChannelNotifier{
		AlertChan:   make(chan *models.FleetAlert, config.ChannelSize),
		sendTimeout: config.SendTimeout,
	}
}

// Notify queues alert for publishing. A full channel drops the alert after
// the send timeout.
func (n *ChannelNotifier) Notify(ctx context.Context, alert models.FleetAlert) error {
	select {
	case n.AlertChan <- &alert:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(n.sendTimeout):
		return fmt.Errorf("alert channel full, dropping alert for region %s", alert.Region)
	}
}
