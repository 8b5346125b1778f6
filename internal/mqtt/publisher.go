package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fleet-dashboard/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Publisher handles MQTT publishing from channels
type Publisher struct {
	client mqtt.Client
	log    zerolog.Logger

	// Input channel (read by publisher, written by the alert notifier)
	AlertChan chan *models.FleetAlert

	alertTopic string // e.g., "fleet/alerts/{region}"
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	AlertTopic string
}

// NewPublisher creates a new MQTT publisher reading from alertChan
func NewPublisher(
	client mqtt.Client,
	config PublisherConfig,
	alertChan chan *models.FleetAlert,
	log zerolog.Logger,
) *Publisher {
	return &Publisher{
		client:     client,
		log:        log.With().Str("component", "mqtt_publisher").Logger(),
		AlertChan:  alertChan,
		alertTopic: config.AlertTopic,
	}
}

// Start begins publishing fleet alerts from the channel
// Runs until context is cancelled or channel is closed
func (p *Publisher) Start(ctx context.Context) {
	p.log.Info().Msg("publisher starting")

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("context cancelled, shutting down")
			return

		case alert, ok := <-p.AlertChan:
			if !ok {
				p.log.Info().Msg("alert channel closed, shutting down")
				return
			}

			if err := p.publishAlert(alert); err != nil {
				p.log.Error().Err(err).Str("region", alert.Region).Msg("failed to publish alert")
			}
		}
	}
}

func (p *Publisher) publishAlert(alert *models.FleetAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal fleet alert: %w", err)
	}

	topic := formatTopic(p.alertTopic, alert.Region)

	token := p.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish fleet alert: %w", token.Error())
	}

	p.log.Info().
		Str("topic", topic).
		Int64("critical_devices", alert.CriticalDevices).
		Msg("published fleet alert")
	return nil
}

// formatTopic replaces the {region} placeholder. Spaces become dashes so
// "New York" stays a single topic level.
func formatTopic(topicPattern, region string) string {
	region = strings.ReplaceAll(strings.ToLower(region), " ", "-")
	return strings.ReplaceAll(topicPattern, "{region}", region)
}
