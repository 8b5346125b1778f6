package viewmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// ErrInvalidEvent is returned for events that are malformed or carry a
// value outside the offered choices.
var ErrInvalidEvent = errors.New("invalid event")

// Event is one user interaction. Each variant has a fixed wire name used as
// the "type" field of its JSON encoding.
type Event interface {
	EventType() string
}

type SetRegion struct {
	Region string `json:"region"`
}

type SetRiskLevels struct {
	Levels []string `json:"levels"`
}

type SetStates struct {
	States []string `json:"states"`
}

type SetModels struct {
	Models []string `json:"models"`
}

type SetHealth struct {
	Statuses []string `json:"statuses"`
}

type SelectDevice struct {
	DeviceID string `json:"device_id"`
}

type SetOutcome struct {
	Outcome string `json:"outcome"`
}

type SetConditions struct {
	Conditions []string `json:"conditions"`
}

type SetChurnThreshold struct {
	Threshold int `json:"threshold"`
}

type SetChurnReduction struct {
	Percent int `json:"percent"`
}

type SetTarget struct {
	Target string `json:"target"`
}

// AskAgent submits a question to the agent.
type AskAgent struct {
	Question string `json:"question"`
}

// UseSuggestion copies a suggested question into the question box.
type UseSuggestion struct {
	Index int `json:"index"`
}

// Refresh drops every memoized result.
type Refresh struct{}

func (SetRegion) EventType() string         { return "set_region" }
func (SetRiskLevels) EventType() string     { return "set_risk_levels" }
func (SetStates) EventType() string         { return "set_states" }
func (SetModels) EventType() string         { return "set_models" }
func (SetHealth) EventType() string         { return "set_health" }
func (SelectDevice) EventType() string      { return "select_device" }
func (SetOutcome) EventType() string        { return "set_outcome" }
func (SetConditions) EventType() string     { return "set_conditions" }
func (SetChurnThreshold) EventType() string { return "set_churn_threshold" }
func (SetChurnReduction) EventType() string { return "set_churn_reduction" }
func (SetTarget) EventType() string         { return "set_target" }
func (AskAgent) EventType() string          { return "ask_agent" }
func (UseSuggestion) EventType() string     { return "use_suggestion" }
func (Refresh) EventType() string           { return "refresh" }

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return ev, nil
}

var decoders = map[string]func([]byte) (Event, error){
	"set_region":          decodeAs[SetRegion],
	"set_risk_levels":     decodeAs[SetRiskLevels],
	"set_states":          decodeAs[SetStates],
	"set_models":          decodeAs[SetModels],
	"set_health":          decodeAs[SetHealth],
	"select_device":       decodeAs[SelectDevice],
	"set_outcome":         decodeAs[SetOutcome],
	"set_conditions":      decodeAs[SetConditions],
	"set_churn_threshold": decodeAs[SetChurnThreshold],
	"set_churn_reduction": decodeAs[SetChurnReduction],
	"set_target":          decodeAs[SetTarget],
	"ask_agent":           decodeAs[AskAgent],
	"use_suggestion":      decodeAs[UseSuggestion],
	"refresh":             decodeAs[Refresh],
}

// DecodeEvent parses {"type": "...", ...fields} into the matching variant.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	decode, ok := decoders[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, envelope.Type)
	}
	return decode(data)
}

// EncodeEvent is the inverse of DecodeEvent.
func EncodeEvent(e Event) ([]byte, error) {
	fields, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, err
	}
	m["type"] = e.EventType()
	return json.Marshal(m)
}

// EventsFromQuery turns screen query parameters into events, in a fixed
// order. Multi-selects repeat their key (?state=TX&state=OH). Keys that are
// absent produce no event.
func EventsFromQuery(q url.Values) ([]Event, error) {
	var events []Event
	if q.Has("region") {
		events = append(events, SetRegion{Region: q.Get("region")})
	}
	if q.Has("risk") {
		events = append(events, SetRiskLevels{Levels: q["risk"]})
	}
	if q.Has("state") {
		events = append(events, SetStates{States: q["state"]})
	}
	if q.Has("model") {
		events = append(events, SetModels{Models: q["model"]})
	}
	if q.Has("health") {
		events = append(events, SetHealth{Statuses: q["health"]})
	}
	if q.Has("device") {
		events = append(events, SelectDevice{DeviceID: q.Get("device")})
	}
	if q.Has("outcome") {
		events = append(events, SetOutcome{Outcome: q.Get("outcome")})
	}
	if q.Has("condition") {
		events = append(events, SetConditions{Conditions: q["condition"]})
	}
	if q.Has("threshold") {
		n, err := strconv.Atoi(q.Get("threshold"))
		if err != nil {
			return nil, fmt.Errorf("%w: threshold %q", ErrInvalidEvent, q.Get("threshold"))
		}
		events = append(events, SetChurnThreshold{Threshold: n})
	}
	if q.Has("reduction") {
		n, err := strconv.Atoi(q.Get("reduction"))
		if err != nil {
			return nil, fmt.Errorf("%w: reduction %q", ErrInvalidEvent, q.Get("reduction"))
		}
		events = append(events, SetChurnReduction{Percent: n})
	}
	if q.Has("target") {
		events = append(events, SetTarget{Target: q.Get("target")})
	}
	return events, nil
}
