package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggerUsableBeforeInit(t *testing.T) {
	require.NotNil(t, Logger)
	assert.NotPanics(t, func() { Logger.Info("before init", zap.Int("fd", 3)) })
}

func TestInitLoggerDebug(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	require.NoError(t, InitLogger(true))
	assert.True(t, Logger.Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(false))
	assert.False(t, Logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, Logger.Core().Enabled(zap.InfoLevel))
}
