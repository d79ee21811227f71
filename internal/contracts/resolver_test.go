package contracts

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/usil/eventhos-relay/internal/models"
)

func newTestResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock) {
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

	return NewResolver(db), mock
}

func contractJoinRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "identifier", "name", "event_id", "action_id", "order", "active",
		"Action__id", "Action__system_id", "Action__identifier", "Action__name",
		"Action__operation", "Action__http_configuration",
	})
}

func securityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "action_id", "type", "http_configuration"})
}

func TestResolveForEventOrderedWithSecurities(t *testing.T) {
	r, mock := newTestResolver(t)

	mock.ExpectQuery(`SELECT .+ FROM "contracts"`).
		WithArgs(int64(7), true).
		WillReturnRows(contractJoinRows().
			AddRow(1, "notify-crm", "Notify CRM", 7, 30, 0, true,
				30, 2, "crm-upsert", "CRM Upsert", "new", "enc-a").
			AddRow(2, "notify-billing", "Notify Billing", 7, 31, 0, true,
				31, 2, "billing-sync", "Billing Sync", "update", "enc-b").
			AddRow(3, "close-ticket", "Close Ticket", 7, 32, 1, true,
				32, 3, "ticket-close", "Ticket Close", "process", "enc-c"))
	mock.ExpectQuery(`SELECT \* FROM "action_securities"`).
		WithArgs(int64(30), int64(31), int64(32)).
		WillReturnRows(securityRows().
			AddRow(100, 30, "custom", "").
			AddRow(101, 31, "oauth2_client", "enc-token-template").
			AddRow(102, 32, "custom", ""))

	resolved, err := r.ResolveForEvent(7)
	require.NoError(t, err)
	require.Len(t, resolved, 3)

	assert.Equal(t, "notify-crm", resolved[0].Contract.Identifier)
	assert.Equal(t, 0, resolved[0].Contract.Order)
	assert.Equal(t, "Notify Billing", resolved[1].Contract.Name)
	assert.Equal(t, 1, resolved[2].Contract.Order)

	assert.Equal(t, int64(30), resolved[0].Action.ID)
	assert.Equal(t, "enc-a", resolved[0].Action.HTTPConfiguration)
	assert.Equal(t, models.SecurityOAuth2, resolved[1].Security.Type)
	assert.Equal(t, "enc-token-template", resolved[1].Security.HTTPConfiguration)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveForEventNoContracts(t *testing.T) {
	r, mock := newTestResolver(t)

	mock.ExpectQuery(`SELECT .+ FROM "contracts"`).
		WithArgs(int64(7), true).
		WillReturnRows(contractJoinRows())

	resolved, err := r.ResolveForEvent(7)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveForEventSkipsDeletedActions(t *testing.T) {
	r, mock := newTestResolver(t)

	// Left join against a soft-deleted action yields NULL action
	// columns, which scan to a zero Action.ID.
	mock.ExpectQuery(`SELECT .+ FROM "contracts"`).
		WithArgs(int64(7), true).
		WillReturnRows(contractJoinRows().
			AddRow(1, "notify-crm", "Notify CRM", 7, 30, 0, true,
				nil, nil, nil, nil, nil, nil))

	resolved, err := r.ResolveForEvent(7)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveForEventMissingSecurityRow(t *testing.T) {
	r, mock := newTestResolver(t)

	mock.ExpectQuery(`SELECT .+ FROM "contracts"`).
		WithArgs(int64(7), true).
		WillReturnRows(contractJoinRows().
			AddRow(1, "notify-crm", "Notify CRM", 7, 30, 0, true,
				30, 2, "crm-upsert", "CRM Upsert", "new", "enc-a"))
	mock.ExpectQuery(`SELECT \* FROM "action_securities"`).
		WithArgs(int64(30)).
		WillReturnRows(securityRows())

	_, err := r.ResolveForEvent(7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no security row")
}
