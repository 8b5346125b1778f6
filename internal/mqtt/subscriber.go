package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fleet-dashboard/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Subscriber handles MQTT subscriptions and writes messages to channels
type Subscriber struct {
	client mqtt.Client
	log    zerolog.Logger

	// Output channel (written by subscriber, read by the refresh service)
	ScoringChan chan *models.ScoringEvent

	scoringTopic string
	sendTimeout  time.Duration
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	ScoringTopic string // e.g., "fleet/scoring/+/completed"
	SendTimeout  time.Duration
}

// NewSubscriber creates a new MQTT subscriber writing to scoringChan
func NewSubscriber(
	client mqtt.Client,
	config SubscriberConfig,
	scoringChan chan *models.ScoringEvent,
	log zerolog.Logger,
) *Subscriber {
	timeout := config.SendTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Subscriber{
		client:       client,
		log:          log.With().Str("component", "mqtt_subscriber").Logger(),
		ScoringChan:  scoringChan,
		scoringTopic: config.ScoringTopic,
		sendTimeout:  timeout,
	}
}

// SubscribeAll subscribes to all configured topics
func (s *Subscriber) SubscribeAll() error {
	if s.scoringTopic == "" {
		return nil
	}
	token := s.client.Subscribe(s.scoringTopic, 1, s.handleScoring)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to scoring topic: %w", token.Error())
	}
	s.log.Info().Str("topic", s.scoringTopic).Msg("subscribed to scoring topic")
	return nil
}

// handleScoring decodes a scoring completion and forwards it to the channel
func (s *Subscriber) handleScoring(_ mqtt.Client, msg mqtt.Message) {
	var event models.ScoringEvent
	if err := json.Unmarshal(msg.Payload(), &event); err != nil {
		s.log.Error().Err(err).Str("topic", msg.Topic()).Msg("failed to decode scoring event")
		return
	}

	// fleet/scoring/{pipeline}/completed
	if event.Pipeline == "" {
		event.Pipeline = extractSegment(msg.Topic(), 3)
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now()
	}

	s.log.Debug().
		Str("batch_id", event.BatchID).
		Str("pipeline", event.Pipeline).
		Msg("scoring batch completed")

	// Write to channel (non-blocking with timeout)
	select {
	case s.ScoringChan <- &event:
	case <-time.After(s.sendTimeout):
		s.log.Warn().Str("batch_id", event.BatchID).Msg("scoring channel full, dropping event")
	}
}

// extractSegment returns the 1-based segment n of topic, or "" if absent.
// Example: extractSegment("fleet/scoring/nightly/completed", 3) -> "nightly"
func extractSegment(topic string, n int) string {
	parts := strings.Split(topic, "/")
	if n < 1 || n > len(parts) {
		return ""
	}
	return parts[n-1]
}
