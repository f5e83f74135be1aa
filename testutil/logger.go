package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// GetTestLogger returns a development logger only printing errors. It is
// synced when the test ends.
func GetTestLogger(t *testing.T) *zap.Logger {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	logger, err := loggerConfig.Build()

	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Sync() })

	return logger
}
