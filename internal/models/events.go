package models

import "time"

// ScoringEvent is published by the scoring pipeline when a batch of risk
// scores has been written to the warehouse.
type ScoringEvent struct {
	BatchID       string    `json:"batch_id"`
	Pipeline      string    `json:"pipeline"`
	DevicesScored int       `json:"devices_scored"`
	CompletedAt   time.Time `json:"completed_at"`
}

// FleetAlert is published when the command center raises a critical alert
type FleetAlert struct {
	Timestamp       time.Time `json:"timestamp"`
	Region          string    `json:"region"`
	CriticalDevices int64     `json:"critical_devices"`
	Threshold       int       `json:"threshold"`
	Message         string    `json:"message"`
}
