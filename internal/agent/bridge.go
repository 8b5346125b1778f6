package agent

import (
	"context"
	"errors"
	"strings"

	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/ml"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"

	"github.com/rs/zerolog"
)

// User-facing warnings. Failures never surface as errors to the caller.
const (
	WarnEmptyQuestion = "Please enter a question."
	WarnNoSQL         = "Could not generate a SQL query for this question."
	WarnNoResults     = "No results found or query could not be processed."
	WarnNoDocs        = "No documentation found for this query."
	WarnComposite     = "Could not process composite query."
)

// Config holds agent bridge settings
type Config struct {
	Model       string
	Corpus      string
	SearchLimit int
	RowLimit    int
}

// DefaultConfig returns default agent bridge configuration
func DefaultConfig() Config {
	return Config{
		Model:       "gemini-2.5-flash",
		Corpus:      query.RunbookDocuments,
		SearchLimit: 3,
		RowLimit:    500,
	}
}

type cannedQuery struct {
	keyword     string
	failureType string
	followUp    string
}

var cannedQueries = []cannedQuery{
	{keyword: "overheating", failureType: "Overheating", followUp: "How to fix overheating devices?"},
	{keyword: "memory leak", failureType: "Memory Leak", followUp: "How to fix memory leak issues?"},
}

// Bridge answers natural-language questions about the fleet.
type Bridge struct {
	cfg       Config
	completer ml.Completer
	searcher  Searcher
	warehouse database.Warehouse
	semantic  *ml.SemanticModel
	guard     *Guard
	log       zerolog.Logger
}

// NewBridge wires the bridge. warehouse should not be memoized: generated
// SQL is run exactly as asked.
func NewBridge(cfg Config, completer ml.Completer, searcher Searcher, warehouse database.Warehouse, semantic *ml.SemanticModel, log zerolog.Logger) *Bridge {
	if semantic == nil {
		semantic = ml.DefaultSemanticModel()
	}
	return &Bridge{
		cfg:       cfg,
		completer: completer,
		searcher:  searcher,
		warehouse: warehouse,
		semantic:  semantic,
		guard:     NewGuard(semantic.AllowedTables(), cfg.RowLimit),
		log:       log.With().Str("component", "agent").Logger(),
	}
}

// Ask classifies and answers one question.
func (b *Bridge) Ask(ctx context.Context, question string) models.AgentResponse {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.AgentResponse{Intent: IntentAnalyst.Label(), Warning: WarnEmptyQuestion}
	}

	intent := Classify(question)
	b.log.Info().Str("intent", intent.String()).Str("question", question).Msg("question received")

	var resp models.AgentResponse
	switch intent {
	case IntentComposite:
		resp = b.composite(ctx, question)
	case IntentSearch:
		resp = b.search(ctx, question)
	default:
		resp = b.analyst(ctx, question)
	}
	resp.Question = question
	resp.Intent = intent.Label()
	return resp
}

func (b *Bridge) analyst(ctx context.Context, question string) models.AgentResponse {
	if b.completer == nil {
		return models.AgentResponse{Warning: WarnNoSQL}
	}
	text, err := b.completer.Complete(ctx, b.cfg.Model, b.semantic.Preamble(question))
	if err != nil {
		b.log.Warn().Err(err).Msg("completion failed")
		return models.AgentResponse{Warning: WarnNoSQL}
	}

	sql, err := b.guard.Sanitize(text)
	if err != nil {
		b.log.Warn().Err(err).Str("sql", text).Msg("generated SQL rejected")
		return models.AgentResponse{SQL: strings.TrimSpace(text), Warning: WarnNoResults}
	}

	rows, err := b.warehouse.Query(ctx, sql)
	if err != nil || rows.Empty() {
		if err != nil {
			b.log.Warn().Err(err).Str("sql", sql).Msg("generated SQL failed")
		}
		return models.AgentResponse{SQL: sql, Warning: WarnNoResults}
	}
	return models.AgentResponse{SQL: sql, Rows: rows}
}

func (b *Bridge) search(ctx context.Context, question string) models.AgentResponse {
	results, err := b.runSearch(ctx, question)
	if err != nil {
		return models.AgentResponse{Warning: WarnNoDocs}
	}
	return models.AgentResponse{Results: results}
}

func (b *Bridge) runSearch(ctx context.Context, question string) ([]models.SearchResult, error) {
	if b.searcher == nil {
		return nil, ErrNoSearchResults
	}
	results, err := b.searcher.Search(ctx, SearchRequest{
		Query:   question,
		Corpus:  b.cfg.Corpus,
		Columns: SearchColumns,
		Limit:   b.cfg.SearchLimit,
	})
	if err != nil {
		if !errors.Is(err, ErrNoSearchResults) {
			b.log.Warn().Err(err).Msg("search failed")
		}
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoSearchResults
	}
	if b.cfg.SearchLimit > 0 && len(results) > b.cfg.SearchLimit {
		results = results[:b.cfg.SearchLimit]
	}
	return results, nil
}

func (b *Bridge) composite(ctx context.Context, question string) models.AgentResponse {
	lower := strings.ToLower(question)
	var canned *cannedQuery
	for i := range cannedQueries {
		if strings.Contains(lower, cannedQueries[i].keyword) {
			canned = &cannedQueries[i]
			break
		}
	}
	if canned == nil {
		return models.AgentResponse{Warning: WarnComposite}
	}

	sql, args, err := query.From(query.FleetHealthScored, b.warehouse.Dialect()).
		Columns("device_id", "hospital_name", "region", "failure_probability").
		Where("predicted_failure_type", query.Eq, canned.failureType).
		Where("failure_probability", query.Gt, 0.70).
		OrderBy("failure_probability DESC").
		Build()
	if err != nil {
		return models.AgentResponse{Warning: WarnComposite}
	}
	rows, err := b.warehouse.Query(ctx, sql, args...)
	if err != nil {
		b.log.Warn().Err(err).Str("failure_type", canned.failureType).Msg("composite query failed")
		return models.AgentResponse{SQL: sql, Warning: WarnComposite}
	}

	// missing guidance still leaves the device list useful
	results, _ := b.runSearch(ctx, canned.followUp)
	return models.AgentResponse{
		SQL:      sql,
		Rows:     rows,
		Results:  results,
		FollowUp: canned.followUp,
	}
}
