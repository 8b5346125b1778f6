package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

func TestWarehouseSearcherRanksByCosineDistance(t *testing.T) {
	w := &fakeWarehouse{frame: models.NewFrame("title", "failure_category", "content", "severity", "estimated_repair_time", "safety_notes", "distance").
		Append("Thermal paste replacement", "Overheating", "Power down, ...", "High", "45 min", "Unplug first", 0.12)}
	s := NewWarehouseSearcher(w, fakeEmbedder{vec: []float32{0.1, 0.2}})

	results, err := s.Search(context.Background(), SearchRequest{Query: "overheating", Corpus: query.RunbookDocuments, Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Thermal paste replacement", results[0].Title)
	assert.Equal(t, "45 min", results[0].EstimatedRepairTime)
	assert.InDelta(t, 0.12, results[0].Distance, 1e-9)

	require.Len(t, w.queries, 1)
	assert.Equal(t,
		"SELECT title, failure_category, content, severity, estimated_repair_time, safety_notes, cosineDistance(embedding, ?) AS distance FROM runbook_documents ORDER BY distance ASC LIMIT 3",
		w.queries[0].sql)
	assert.Equal(t, []any{[]float32{0.1, 0.2}}, w.queries[0].args)
}

func TestWarehouseSearcherRejectsBadIdentifiers(t *testing.T) {
	s := NewWarehouseSearcher(&fakeWarehouse{}, fakeEmbedder{})
	_, err := s.Search(context.Background(), SearchRequest{Query: "x", Corpus: "runbooks; DROP", Limit: 3})
	assert.ErrorIs(t, err, query.ErrUnknownColumn)

	_, err = s.Search(context.Background(), SearchRequest{Query: "x", Corpus: "runbooks", Columns: []string{"title)"}, Limit: 3})
	assert.ErrorIs(t, err, query.ErrUnknownColumn)
}

func TestWarehouseSearcherEmptyCorpus(t *testing.T) {
	s := NewWarehouseSearcher(&fakeWarehouse{frame: models.NewFrame("title")}, fakeEmbedder{vec: []float32{1}})
	_, err := s.Search(context.Background(), SearchRequest{Query: "x", Corpus: "runbook_documents", Limit: 3})
	assert.ErrorIs(t, err, ErrNoSearchResults)
}

func TestHTTPSearcher(t *testing.T) {
	var got SearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/runbook_documents", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":"A","failure_category":"Memory Leak","content":"Restart","severity":"Medium","estimated_repair_time":"15 min","safety_notes":"None"},
			{"title":"B"},{"title":"C"},{"title":"D"}]}`))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(srv.URL+"/search/", nil)
	results, err := s.Search(context.Background(), SearchRequest{Query: "memory leak", Corpus: "runbook_documents", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "Memory Leak", results[0].FailureCategory)
	assert.Equal(t, "memory leak", got.Query)
	assert.Equal(t, SearchColumns, got.Columns)
	assert.Equal(t, 3, got.Limit)
}

func TestHTTPSearcherErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSearcher(srv.URL, nil).Search(context.Background(), SearchRequest{Query: "x", Corpus: "c", Limit: 3})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "503"))
}

func TestDecodeSearchResults(t *testing.T) {
	_, err := DecodeSearchResults([]byte(`{"results":[]}`))
	assert.ErrorIs(t, err, ErrNoSearchResults)

	_, err = DecodeSearchResults([]byte(`not json`))
	assert.Error(t, err)
}
