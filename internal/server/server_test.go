package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"
	"fleet-dashboard/internal/services"
	"fleet-dashboard/internal/viewmodel"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const seed = `
	INSERT INTO fleet_health_scored
		(device_id, region, hospital_name, failure_probability, predicted_failure_type, latitude, longitude, revenue_impact_usd, is_offline)
	VALUES
		('T1', 'Texas', 'Austin General', 0.95, 'Overheating', 30.27, -97.74, 10000, 0),
		('O1', 'Ohio', 'Columbus Care', 0.97, 'Overheating', 39.96, -83.00, 12000, 0)
`

const seedProviders = `
	INSERT INTO provider_health_scored
		(facility_name, facility_type, city, state, account_manager, churn_risk_score, churn_risk_category,
		 annual_revenue_at_risk, patient_engagement_score, avg_patient_engagement, nps_score, contract_status)
	VALUES ('P1', 'Clinic', 'Austin', 'TX', 'Dana', 85, 'HIGH', 400000, 30, 25, 10, 'Active')
`

// fakeAsker echoes the question back as a search answer.
type fakeAsker struct {
	mu        sync.Mutex
	questions []string
}

func (a *fakeAsker) Ask(_ context.Context, question string) models.AgentResponse {
	a.mu.Lock()
	a.questions = append(a.questions, question)
	a.mu.Unlock()
	return models.AgentResponse{Question: question, Intent: "Search"}
}

// downWarehouse behaves like a warehouse whose host refuses connections.
type downWarehouse struct{}

func (downWarehouse) Query(context.Context, string, ...any) (*models.Frame, error) {
	return nil, fmt.Errorf("%w: dial tcp: connection refused", database.ErrUnavailable)
}
func (downWarehouse) Ping(context.Context) error { return errors.New("connection refused") }
func (downWarehouse) Dialect() query.Dialect     { return query.Question }
func (downWarehouse) Close() error               { return nil }

func newServer(t *testing.T, w database.Warehouse, asker Asker) *Server {
	t.Helper()
	log := zerolog.Nop()
	cache := database.NewCachedWarehouse(w, 5*time.Minute)
	return New(DefaultConfig(), Deps{
		Warehouse:     w,
		CommandCenter: services.NewCommandCenterService(cache, services.DefaultCommandCenterConfig(), nil, log),
		Fleet:         services.NewFleetService(cache, log),
		Hypothesis:    services.NewHypothesisService(cache, log),
		Refresh:       services.NewRefreshService(cache, services.DefaultRefreshServiceConfig(), log),
		Agent:         asker,
	}, log)
}

func openWarehouse(t *testing.T) *database.SQLDB {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLiteDB(ctx, ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema(ctx))
	require.NoError(t, db.Exec(ctx, seed))
	require.NoError(t, db.Exec(ctx, seedProviders))
	return db
}

func do(t *testing.T, s *Server, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", SessionCookie)
	return nil
}

func TestHealth(t *testing.T) {
	s := newServer(t, openWarehouse(t), nil)

	rec := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(RequestIDHeader))
}

type fakeBroker struct{ connected bool }

func (b fakeBroker) IsConnected() bool { return b.connected }

func TestHealthReportsBroker(t *testing.T) {
	s := newServer(t, openWarehouse(t), nil)
	assert.NotContains(t, decode(t, do(t, s, http.MethodGet, "/health", "")), "mqtt_connected")

	s.deps.Broker = fakeBroker{connected: true}
	assert.Equal(t, true, decode(t, do(t, s, http.MethodGet, "/health", ""))["mqtt_connected"])
}

func TestPagesRecoverOnceWarehouseIsReachable(t *testing.T) {
	db := openWarehouse(t)
	var mu sync.Mutex
	up := false
	lazy := database.NewLazyWarehouse(query.Question, func(context.Context) (database.Warehouse, error) {
		mu.Lock()
		defer mu.Unlock()
		if !up {
			return nil, errors.New("dial tcp 127.0.0.1:9000: connect: connection refused")
		}
		return db, nil
	})
	s := newServer(t, lazy, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/command-center", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, database.Remediation, decode(t, rec)["message"])

	mu.Lock()
	up = true
	mu.Unlock()

	rec = do(t, s, http.MethodGet, "/api/v1/command-center", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestWarehouseDownShowsRemediation(t *testing.T) {
	s := newServer(t, downWarehouse{}, nil)

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, database.Remediation, decode(t, rec)["message"])

	rec = do(t, s, http.MethodGet, "/api/v1/command-center", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, database.Remediation, decode(t, rec)["message"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestScreenSelectionsPersistPerSession(t *testing.T) {
	s := newServer(t, openWarehouse(t), nil)

	rec := do(t, s, http.MethodGet, "/api/v1/command-center?region=Texas&risk=critical", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	cc := body["state"].(map[string]any)["command_center"].(map[string]any)
	assert.Equal(t, "Texas", cc["region"])

	view := body["view"].(map[string]any)
	table := view["critical_devices"].(map[string]any)
	rows := table["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "T1", rows[0].([]any)[0])

	cookie := sessionCookie(t, rec)
	rec = do(t, s, http.MethodGet, "/api/v1/state", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Texas", decode(t, rec)["command_center"].(map[string]any)["region"])

	rec = do(t, s, http.MethodGet, "/api/v1/state", "")
	assert.Equal(t, "All", decode(t, rec)["command_center"].(map[string]any)["region"],
		"a request without the cookie starts a fresh session")
	assert.Equal(t, 2, s.Sessions().Len())
}

func TestInvalidSelectionsAreRejected(t *testing.T) {
	s := newServer(t, openWarehouse(t), nil)

	rec := do(t, s, http.MethodGet, "/api/v1/command-center?region=Atlantis", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/hypothesis?threshold=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/events", `{"type":"launch_rockets"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	first := do(t, s, http.MethodGet, "/api/v1/state", "")
	cookie := sessionCookie(t, first)
	rec = do(t, s, http.MethodGet, "/api/v1/fleet?health=critical&health=broken", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/v1/state", "", cookie)
	health := decode(t, rec)["fleet"].(map[string]any)["health"].([]any)
	assert.Len(t, health, 3, "a rejected selection leaves the session unchanged")
}

func TestAgentQuestions(t *testing.T) {
	asker := &fakeAsker{}
	s := newServer(t, openWarehouse(t), asker)

	rec := do(t, s, http.MethodGet, "/api/v1/agent/suggestions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var suggestions []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &suggestions))
	require.Len(t, suggestions, 3)

	rec = do(t, s, http.MethodPost, "/api/v1/events", `{"type":"use_suggestion","index":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, suggestions[1]["question"], decode(t, rec)["question"])
	cookie := sessionCookie(t, rec)

	rec = do(t, s, http.MethodPost, "/api/v1/agent/ask", `{"question":"  Show critical devices in Ohio "}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	answer := decode(t, rec)
	assert.Equal(t, "Show critical devices in Ohio", answer["question"])
	assert.Equal(t, "Search", answer["intent"])

	rec = do(t, s, http.MethodGet, "/api/v1/command-center", "", cookie)
	agentPanel := decode(t, rec)["view"].(map[string]any)["agent"].(map[string]any)
	assert.Equal(t, "Show critical devices in Ohio", agentPanel["question"])
	assert.NotNil(t, agentPanel["answer"])

	rec = do(t, s, http.MethodPost, "/api/v1/events", `{"type":"ask_agent","question":"What fixes overheating?"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What fixes overheating?", decode(t, rec)["answer"].(map[string]any)["question"])
	assert.Equal(t, []string{"Show critical devices in Ohio", "What fixes overheating?"}, asker.questions)
}

func TestAgentNotConfigured(t *testing.T) {
	s := newServer(t, openWarehouse(t), nil)

	rec := do(t, s, http.MethodPost, "/api/v1/agent/ask", `{"question":"anything"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefreshDropsCachedResults(t *testing.T) {
	s := newServer(t, openWarehouse(t), nil)

	rec := do(t, s, http.MethodGet, "/api/v1/command-center", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(5), body["dropped"])
	assert.Equal(t, float64(1), body["status"].(map[string]any)["refreshes"])

	rec = do(t, s, http.MethodPost, "/api/v1/events", `{"type":"refresh"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(2), s.deps.Refresh.Status().Refreshes)
}

func TestProvidersExport(t *testing.T) {
	s := newServer(t, openWarehouse(t), nil)

	rec := do(t, s, http.MethodGet, "/api/v1/hypothesis/providers.csv?threshold=80", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="at_risk_providers.csv"`, rec.Header().Get(echo.HeaderContentDisposition))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "facility_name,"))
	assert.True(t, strings.HasPrefix(lines[1], "P1,"))
}

func TestRecoveryTurnsPanicsIntoServerErrors(t *testing.T) {
	s := newServer(t, openWarehouse(t), nil)
	s.echo.GET("/boom", func(echo.Context) error { panic("boom") })

	rec := do(t, s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec)["message"])
}

func TestSessionsSweepIdle(t *testing.T) {
	sessions := NewSessions(time.Hour, zerolog.Nop())
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return now }

	sessions.Get("a")
	now = now.Add(30 * time.Minute)
	sessions.Get("b")
	now = now.Add(45 * time.Minute)

	assert.Equal(t, 1, sessions.Sweep())
	assert.Equal(t, 1, sessions.Len())

	_, err := sessions.Update("b", func(st viewmodel.State) (viewmodel.State, error) {
		return st, errors.New("rejected")
	})
	assert.EqualError(t, err, "rejected")
}
