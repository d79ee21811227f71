package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitDefaultsToInfo(t *testing.T) {
	require.NoError(t, Init(""))
	require.NotNil(t, Logger)
	assert.True(t, Logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, Logger.Core().Enabled(zap.DebugLevel))
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init("loud"))
	assert.True(t, Logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, Logger.Core().Enabled(zap.DebugLevel))
}

func TestInitDebugEnablesDebug(t *testing.T) {
	require.NoError(t, Init("DEBUG"))
	assert.True(t, Logger.Core().Enabled(zap.DebugLevel))
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, zap.Int64("event_id", 5), EventID(5))
	assert.Equal(t, zap.Int64("contract_id", 7), ContractID(7))
	assert.Equal(t, zap.String("contract", "notify-crm"), Contract("notify-crm"))
	assert.Equal(t, zap.String("correlation_id", "4f1c"), CorrelationID("4f1c"))
	assert.Equal(t, zap.String("queue", "eventhos-events"), Queue("eventhos-events"))
}
