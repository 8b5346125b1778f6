package ml

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SemanticModel describes the warehouse to the completion model
type SemanticModel struct {
	Name     string          `yaml:"name"`
	Database string          `yaml:"database"`
	Dialect  string          `yaml:"dialect"`
	Tables   []SemanticTable `yaml:"tables"`
	Rules    []string        `yaml:"rules"`
}

type SemanticTable struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Primary     bool             `yaml:"primary"`
	Columns     []SemanticColumn `yaml:"columns"`
}

type SemanticColumn struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// LoadSemanticModel reads a semantic model from a YAML file
func LoadSemanticModel(path string) (*SemanticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read semantic model file: %w", err)
	}

	var m SemanticModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal semantic model: %w", err)
	}
	if len(m.Tables) == 0 {
		return nil, fmt.Errorf("semantic model %s declares no tables", path)
	}
	return &m, nil
}

// WriteSemanticModel saves m as YAML, e.g. to seed an editable copy of the default
func WriteSemanticModel(path string, m *SemanticModel) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal semantic model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write semantic model file: %w", err)
	}
	return nil
}

// DefaultSemanticModel covers the scored fleet table used by analyst questions
func DefaultSemanticModel() *SemanticModel {
	return &SemanticModel{
		Name:     "fleet_health",
		Database: "fleet_ops",
		Dialect:  "ClickHouse",
		Tables: []SemanticTable{
			{
				Name:        "fleet_health_scored",
				Description: "One row per device with its latest telemetry and model risk score",
				Primary:     true,
				Columns: []SemanticColumn{
					{Name: "device_id", Description: "device identifier"},
					{Name: "region", Description: "US state the hospital is in"},
					{Name: "hospital_name", Description: "hospital hosting the device"},
					{Name: "failure_probability", Description: "predicted probability of failure (0-1)"},
					{Name: "predicted_failure_type", Description: "e.g. Overheating, Memory Leak, Power Supply"},
					{Name: "last_ping", Description: "time of the last heartbeat"},
					{Name: "temperature", Description: "latest temperature reading"},
					{Name: "cpu_load", Description: "latest CPU load"},
					{Name: "memory_usage", Description: "latest memory usage"},
				},
			},
			{
				Name:        "vw_regional_health",
				Description: "Per-region counts of critical devices and revenue at risk",
				Columns: []SemanticColumn{
					{Name: "region"},
					{Name: "critical_count"},
					{Name: "avg_failure_prob"},
					{Name: "total_devices"},
					{Name: "revenue_at_risk"},
				},
			},
		},
		Rules: []string{
			"Critical devices: failure_probability > 0.85",
			"At-risk devices: failure_probability > 0.70",
		},
	}
}

// AllowedTables lists the tables generated SQL may read
func (m *SemanticModel) AllowedTables() []string {
	out := make([]string, 0, len(m.Tables))
	for _, t := range m.Tables {
		out = append(out, t.Name)
	}
	return out
}

// Preamble renders the fixed context prompt followed by the user's question
func (m *SemanticModel) Preamble(question string) string {
	var b strings.Builder
	b.WriteString("You are a SQL expert analyzing medical device fleet data.\n\n")
	b.WriteString("Semantic Model Context:\n")
	fmt.Fprintf(&b, "- Database: %s\n", m.Database)
	if m.Dialect != "" {
		fmt.Fprintf(&b, "- SQL dialect: %s\n", m.Dialect)
	}
	for _, t := range m.Tables {
		role := "Table"
		if t.Primary {
			role = "Main Table"
		}
		fmt.Fprintf(&b, "- %s: %s", role, t.Name)
		if t.Description != "" {
			fmt.Fprintf(&b, " (%s)", t.Description)
		}
		b.WriteString("\n")
		if len(t.Columns) > 0 {
			cols := make([]string, 0, len(t.Columns))
			for _, c := range t.Columns {
				if c.Description != "" {
					cols = append(cols, fmt.Sprintf("%s (%s)", c.Name, c.Description))
				} else {
					cols = append(cols, c.Name)
				}
			}
			fmt.Fprintf(&b, "  Columns: %s\n", strings.Join(cols, ", "))
		}
	}
	for _, r := range m.Rules {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	fmt.Fprintf(&b, "\nUser Question: %s\n\n", strings.TrimSpace(question))
	b.WriteString("Generate a single read-only SQL query to answer this question. Return ONLY the SQL query, no explanation.")
	return b.String()
}
