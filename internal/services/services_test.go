package services

import (
	"context"
	"sync/atomic"
	"testing"

	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// openWarehouse returns an in-memory warehouse with the dashboard schema and
// the given seed statements applied.
func openWarehouse(t *testing.T, seeds ...string) *database.SQLDB {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLiteDB(ctx, ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.InitSchema(ctx))
	for _, s := range seeds {
		require.NoError(t, db.Exec(ctx, s))
	}
	return db
}

const seedFleetScores = `
	INSERT INTO fleet_health_scored
		(device_id, region, hospital_name, failure_probability, predicted_failure_type, latitude, longitude, revenue_impact_usd, is_offline)
	VALUES
		('T1', 'Texas', 'Austin General', 0.95, 'Overheating', 30.27, -97.74, 10000, 0),
		('T2', 'Texas', 'Dallas Medical', 0.88, 'Memory Leak', 32.78, -96.80, 8000, 0),
		('T3', 'Texas', 'Houston Heart', 0.82, 'Overheating', 29.76, -95.37, 5000, 0),
		('T4', 'Texas', 'El Paso Clinic', 0.60, 'Power Supply', 31.76, -106.49, 3000, 1),
		('O1', 'Ohio', 'Columbus Care', 0.97, 'Overheating', 39.96, -83.00, 12000, 0),
		('O2', 'Ohio', 'Dayton Family', 0.30, 'Network', 39.76, -84.19, 1000, 1),
		('N1', 'New York', 'Albany Health', 0.72, 'Memory Leak', 42.65, -73.76, 4000, 0)
`

const seedInventory = `
	INSERT INTO device_inventory VALUES
		('4532', 'DS-55', 'Acme', '2.1.0', 'Active', 'Mercy Clinic', 'Austin', 'TX', 'Waiting Room', '2023-01-15', '2026-06-01', 'Active'),
		('7821', 'DS-55', 'Acme', '2.0.4', 'Expired', 'Lakeside Family', 'Columbus', 'OH', 'Exam Room', '2022-03-10', '2026-02-01', 'Active'),
		('4512', 'DS-55', 'Acme', '2.1.0', 'Active', 'North Dallas Pediatrics', 'Dallas', 'TX', 'Lobby', '2024-05-20', '2026-08-15', 'Active'),
		('9999', 'DS-55', 'Acme', '1.9.0', 'Expired', 'Closed Clinic', 'Austin', 'TX', 'Lobby', '2019-01-01', '2021-01-01', 'Retired')
`

const seedModels = `
	INSERT INTO device_models_reference VALUES ('DS-55', 85, 95, 120, 150)
`

const seedTelemetry = `
	INSERT INTO screen_telemetry VALUES
		('2026-10-01 10:00:00', '4532', 90, 110, 1, 40, 20),
		('2026-10-01 10:05:00', '4532', 97, 130, 3, 55, 25),
		('2026-10-01 10:00:00', '7821', 80, 100, 0, 30, 18),
		('2026-10-01 10:05:00', '7821', 88, 100, 2, 35, 19),
		('2026-10-01 10:05:00', '4512', 70, 90, 0, 20, 80),
		('2026-10-01 10:05:00', '9999', 99, 160, 9, 90, 90)
`

// countingWarehouse counts round trips to the wrapped warehouse.
type countingWarehouse struct {
	database.Warehouse
	calls atomic.Int64
}

func (w *countingWarehouse) Query(ctx context.Context, sql string, args ...any) (*models.Frame, error) {
	w.calls.Add(1)
	return w.Warehouse.Query(ctx, sql, args...)
}

// brokenWarehouse fails every statement with err.
type brokenWarehouse struct {
	database.Warehouse
	err error
}

func (w brokenWarehouse) Query(context.Context, string, ...any) (*models.Frame, error) {
	return nil, w.err
}

func (brokenWarehouse) Dialect() query.Dialect { return query.Question }

// recordingNotifier collects the alerts it is given.
type recordingNotifier struct {
	alerts []models.FleetAlert
}

func (n *recordingNotifier) Notify(_ context.Context, alert models.FleetAlert) error {
	n.alerts = append(n.alerts, alert)
	return nil
}
