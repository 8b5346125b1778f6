package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/ml"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"
)

// ErrNoSearchResults is returned when the corpus has nothing for a question.
var ErrNoSearchResults = errors.New("no search results")

// SearchColumns is the fixed result shape requested from the corpus.
var SearchColumns = []string{"title", "failure_category", "content", "severity", "estimated_repair_time", "safety_notes"}

type SearchRequest struct {
	Query   string   `json:"query"`
	Corpus  string   `json:"-"`
	Columns []string `json:"columns"`
	Limit   int      `json:"limit"`
}

// Searcher ranks corpus entries against a question.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]models.SearchResult, error)
}

// WarehouseSearcher ranks runbook documents stored with embeddings in the
// warehouse by cosine distance to the embedded question.
type WarehouseSearcher struct {
	warehouse database.Warehouse
	embedder  ml.Embedder
}

func NewWarehouseSearcher(w database.Warehouse, e ml.Embedder) *WarehouseSearcher {
	return &WarehouseSearcher{warehouse: w, embedder: e}
}

func (s *WarehouseSearcher) Search(ctx context.Context, req SearchRequest) ([]models.SearchResult, error) {
	if s.warehouse.Dialect() != query.Question {
		return nil, fmt.Errorf("warehouse search needs a ClickHouse warehouse")
	}
	if !query.ValidIdentifier(req.Corpus) {
		return nil, fmt.Errorf("%w: corpus %q", query.ErrUnknownColumn, req.Corpus)
	}
	cols := req.Columns
	if len(cols) == 0 {
		cols = SearchColumns
	}
	for _, c := range cols {
		if !query.ValidIdentifier(c) {
			return nil, fmt.Errorf("%w: %q", query.ErrUnknownColumn, c)
		}
	}

	vec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	sql := fmt.Sprintf("SELECT %s, cosineDistance(embedding, ?) AS distance FROM %s ORDER BY distance ASC LIMIT %d",
		strings.Join(cols, ", "), req.Corpus, req.Limit)
	frame, err := s.warehouse.Query(ctx, sql, vec)
	if err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, ErrNoSearchResults
	}
	return resultsFromFrame(frame), nil
}

func resultsFromFrame(f *models.Frame) []models.SearchResult {
	out := make([]models.SearchResult, 0, f.Len())
	for r := 0; r < f.Len(); r++ {
		out = append(out, models.SearchResult{
			Title:               f.String(r, "title"),
			FailureCategory:     f.String(r, "failure_category"),
			Content:             f.String(r, "content"),
			Severity:            f.String(r, "severity"),
			EstimatedRepairTime: f.String(r, "estimated_repair_time"),
			SafetyNotes:         f.String(r, "safety_notes"),
			Distance:            f.Float(r, "distance"),
		})
	}
	return out
}

// HTTPSearcher queries a hosted semantic-search endpoint. The endpoint takes
// POST {base}/{corpus} with a JSON SearchRequest and answers {"results": [...]}.
type HTTPSearcher struct {
	base   string
	client *http.Client
}

func NewHTTPSearcher(base string, client *http.Client) *HTTPSearcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSearcher{base: strings.TrimRight(base, "/"), client: client}
}

func (s *HTTPSearcher) Search(ctx context.Context, req SearchRequest) ([]models.SearchResult, error) {
	if len(req.Columns) == 0 {
		req.Columns = SearchColumns
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	endpoint := s.base + "/" + url.PathEscape(req.Corpus)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	results, err := DecodeSearchResults(data)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// DecodeSearchResults parses the fixed-shape search payload.
func DecodeSearchResults(data []byte) ([]models.SearchResult, error) {
	var payload struct {
		Results []models.SearchResult `json:"results"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	if len(payload.Results) == 0 {
		return nil, ErrNoSearchResults
	}
	return payload.Results, nil
}
