package gate

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "token-secret"

func newTestGate(t *testing.T) (*Gate, sqlmock.Sqlmock) {
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

	return NewGate(db, testSecret, zap.NewNop()), mock
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "system_id", "identifier", "name", "operation"})
}

func clientRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "system_id", "name", "access_token", "revoked"})
}

func TestAuthenticateMissingParams(t *testing.T) {
	g, _ := newTestGate(t)

	_, rejection := g.Authenticate("", "user-created")
	require.NotNil(t, rejection)
	assert.Equal(t, 400, rejection.Status)
	assert.Equal(t, CodeAccessParamsMissing, rejection.Code)

	_, rejection = g.Authenticate("some-key", "")
	require.NotNil(t, rejection)
	assert.Equal(t, CodeAccessParamsMissing, rejection.Code)
}

func TestAuthenticateUnknownEvent(t *testing.T) {
	g, mock := newTestGate(t)

	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WithArgs("unknown-event", 1).
		WillReturnRows(eventRows())

	_, rejection := g.Authenticate("some-key", "unknown-event")
	require.NotNil(t, rejection)
	assert.Equal(t, 404, rejection.Status)
	assert.Equal(t, CodeEventNotFound, rejection.Code)
}

func TestAuthenticateClientNotFound(t *testing.T) {
	g, mock := newTestGate(t)

	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WithArgs("user-created", 1).
		WillReturnRows(eventRows().AddRow(5, 9, "user-created", "User Created", "new"))
	mock.ExpectQuery(`SELECT \* FROM "clients"`).
		WithArgs(int64(9), 1).
		WillReturnRows(clientRows())

	_, rejection := g.Authenticate("some-key", "user-created")
	require.NotNil(t, rejection)
	assert.Equal(t, 404, rejection.Status)
	assert.Equal(t, CodeClientNotFound, rejection.Code)
}

func TestAuthenticateRevokedClient(t *testing.T) {
	g, mock := newTestGate(t)

	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WithArgs("user-created", 1).
		WillReturnRows(eventRows().AddRow(5, 9, "user-created", "User Created", "new"))
	mock.ExpectQuery(`SELECT \* FROM "clients"`).
		WithArgs(int64(9), 1).
		WillReturnRows(clientRows().AddRow(3, 9, "producer-client", nil, true))

	_, rejection := g.Authenticate("some-key", "user-created")
	require.NotNil(t, rejection)
	assert.Equal(t, 403, rejection.Status)
	assert.Equal(t, CodeClientRevoked, rejection.Code)
}

func TestAuthenticateStaticTokenMatch(t *testing.T) {
	g, mock := newTestGate(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("the-static-token"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WithArgs("user-created", 1).
		WillReturnRows(eventRows().AddRow(5, 9, "user-created", "User Created", "new"))
	mock.ExpectQuery(`SELECT \* FROM "clients"`).
		WithArgs(int64(9), 1).
		WillReturnRows(clientRows().AddRow(3, 9, "producer-client", string(hash), false))

	eventID, rejection := g.Authenticate("the-static-token", "user-created")
	require.Nil(t, rejection)
	assert.Equal(t, int64(5), eventID)
}

func TestAuthenticateStaticTokenMismatch(t *testing.T) {
	g, mock := newTestGate(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("the-static-token"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WithArgs("user-created", 1).
		WillReturnRows(eventRows().AddRow(5, 9, "user-created", "User Created", "new"))
	mock.ExpectQuery(`SELECT \* FROM "clients"`).
		WithArgs(int64(9), 1).
		WillReturnRows(clientRows().AddRow(3, 9, "producer-client", string(hash), false))

	_, rejection := g.Authenticate("wrong-token", "user-created")
	require.NotNil(t, rejection)
	assert.Equal(t, 401, rejection.Status)
	assert.Equal(t, CodeIncorrectToken, rejection.Code)
}

func signedToken(t *testing.T, subject string, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthenticateSignedTokenMatchingSubject(t *testing.T) {
	g, mock := newTestGate(t)

	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WithArgs("user-created", 1).
		WillReturnRows(eventRows().AddRow(5, 9, "user-created", "User Created", "new"))
	mock.ExpectQuery(`SELECT \* FROM "clients"`).
		WithArgs(int64(9), 1).
		WillReturnRows(clientRows().AddRow(3, 9, "producer-client", nil, false))

	eventID, rejection := g.Authenticate(signedToken(t, "3", testSecret), "user-created")
	require.Nil(t, rejection)
	assert.Equal(t, int64(5), eventID)
}

func TestAuthenticateSignedTokenSubjectMismatch(t *testing.T) {
	g, mock := newTestGate(t)

	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WithArgs("user-created", 1).
		WillReturnRows(eventRows().AddRow(5, 9, "user-created", "User Created", "new"))
	mock.ExpectQuery(`SELECT \* FROM "clients"`).
		WithArgs(int64(9), 1).
		WillReturnRows(clientRows().AddRow(3, 9, "producer-client", nil, false))

	_, rejection := g.Authenticate(signedToken(t, "99", testSecret), "user-created")
	require.NotNil(t, rejection)
	assert.Equal(t, 401, rejection.Status)
	assert.Equal(t, CodeIncorrectToken, rejection.Code)
}

func TestAuthenticateSignedTokenWrongSecret(t *testing.T) {
	g, mock := newTestGate(t)

	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WithArgs("user-created", 1).
		WillReturnRows(eventRows().AddRow(5, 9, "user-created", "User Created", "new"))
	mock.ExpectQuery(`SELECT \* FROM "clients"`).
		WithArgs(int64(9), 1).
		WillReturnRows(clientRows().AddRow(3, 9, "producer-client", nil, false))

	_, rejection := g.Authenticate(signedToken(t, "3", "another-secret"), "user-created")
	require.NotNil(t, rejection)
	assert.Equal(t, CodeIncorrectToken, rejection.Code)
}

func TestAuthenticateStorageFailure(t *testing.T) {
	g, mock := newTestGate(t)

	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnError(assert.AnError)

	_, rejection := g.Authenticate("some-key", "user-created")
	require.NotNil(t, rejection)
	assert.Equal(t, 500, rejection.Status)
	assert.Equal(t, CodeInternalError, rejection.Code)
}
