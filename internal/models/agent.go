package models

// SearchResult is one ranked runbook entry returned by semantic search
type SearchResult struct {
	Title               string  `json:"title"`
	FailureCategory     string  `json:"failure_category"`
	Content             string  `json:"content"`
	Severity            string  `json:"severity"`
	EstimatedRepairTime string  `json:"estimated_repair_time"`
	SafetyNotes         string  `json:"safety_notes"`
	Distance            float64 `json:"distance,omitempty"`
}

// AgentResponse is the outcome of one natural-language question.
// A non-empty Warning means the question degraded to a warning state.
type AgentResponse struct {
	Question string         `json:"question"`
	Intent   string         `json:"intent"`
	SQL      string         `json:"sql,omitempty"`
	Rows     *Frame         `json:"rows,omitempty"`
	Results  []SearchResult `json:"results,omitempty"`
	// FollowUp is the canned search question used by composite answers
	FollowUp string `json:"follow_up,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

func (r AgentResponse) OK() bool {
	return r.Warning == ""
}
