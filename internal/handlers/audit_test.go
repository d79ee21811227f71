package handlers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/usil/eventhos-relay/internal/crypto"
)

func newAuditApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock, *crypto.Codec) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	codec, err := crypto.NewCodec("test-encryption-key")
	require.NoError(t, err)

	handler := NewAuditHandler(db, codec, zap.NewNop())

	app := fiber.New()
	app.Get("/received-events", handler.GetReceivedEvents)
	app.Get("/received-events/:id/executions", handler.GetExecutions)
	return app, mock, codec
}

func TestGetReceivedEventsPagination(t *testing.T) {
	app, mock, _ := newAuditApp(t)

	receivedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	// limit 2 fetches 3 rows; the extra row only flips has_more.
	mock.ExpectQuery(`SELECT received_events\.id, events\.identifier`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "identifier", "correlation_id", "received_at"}).
			AddRow(3, "user-created", "cor-3", receivedAt).
			AddRow(2, "user-created", "cor-2", receivedAt).
			AddRow(1, "order-closed", "cor-1", receivedAt))

	req := httptest.NewRequest("GET", "/received-events?limit=2", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, true, body["has_more"])
	events, ok := body["received_events"].([]any)
	require.True(t, ok)
	require.Len(t, events, 2)

	first := events[0].(map[string]any)
	assert.Equal(t, "user-created", first["event_identifier"])
	assert.Equal(t, "cor-3", first["correlation_id"])
	assert.Equal(t, "2026-08-30T12:00:00Z", first["received_at"])
}

func TestGetReceivedEventsRejectsBadLimit(t *testing.T) {
	app, _, _ := newAuditApp(t)

	req := httptest.NewRequest("GET", "/received-events?limit=zero", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 400, resp.StatusCode)
}

func TestGetExecutionsDecryptsSnapshots(t *testing.T) {
	app, mock, codec := newAuditApp(t)

	encryptedRequest, err := codec.Encrypt(`{"url":"https://crm.example/upsert","method":"POST"}`)
	require.NoError(t, err)
	encryptedResult, err := codec.Encrypt(`{"status":200,"latency_ms":12}`)
	require.NoError(t, err)

	startedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "contract_execution_details"`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "contract_id", "received_event_id", "state"}).
			AddRow(40, 7, 9, "processed"))
	mock.ExpectQuery(`SELECT \* FROM "contract_execution_tries"`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "detail_id", "state", "request_snapshot", "result_snapshot",
			"summary", "started_at", "finished_at",
		}).AddRow(80, 40, "processed", encryptedRequest, encryptedResult,
			[]byte(`{"http_status":200}`), startedAt, startedAt))

	req := httptest.NewRequest("GET", "/received-events/9/executions", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	executions, ok := body["executions"].([]any)
	require.True(t, ok)
	require.Len(t, executions, 1)

	detail := executions[0].(map[string]any)
	assert.EqualValues(t, 7, detail["contract_id"])
	assert.Equal(t, "processed", detail["state"])

	tries, ok := detail["tries"].([]any)
	require.True(t, ok)
	require.Len(t, tries, 1)
	try := tries[0].(map[string]any)

	request := try["request"].(map[string]any)
	assert.Equal(t, "https://crm.example/upsert", request["url"])
	result := try["result"].(map[string]any)
	assert.EqualValues(t, 200, result["status"])
	summary := try["summary"].(map[string]any)
	assert.EqualValues(t, 200, summary["http_status"])
}

func TestGetExecutionsUnreadableSnapshotYieldsNull(t *testing.T) {
	app, mock, _ := newAuditApp(t)

	startedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "contract_execution_details"`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "contract_id", "received_event_id", "state"}).
			AddRow(40, 7, 9, "error"))
	mock.ExpectQuery(`SELECT \* FROM "contract_execution_tries"`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "detail_id", "state", "request_snapshot", "result_snapshot",
			"summary", "started_at", "finished_at",
		}).AddRow(80, 40, "error", "corrupted", "corrupted", nil, startedAt, startedAt))

	req := httptest.NewRequest("GET", "/received-events/9/executions", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	executions := body["executions"].([]any)
	detail := executions[0].(map[string]any)
	try := detail["tries"].([]any)[0].(map[string]any)
	assert.Nil(t, try["request"])
	assert.Nil(t, try["result"])
}

func TestGetExecutionsBadID(t *testing.T) {
	app, _, _ := newAuditApp(t)

	req := httptest.NewRequest("GET", "/received-events/not-a-number/executions", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 400, resp.StatusCode)
}
