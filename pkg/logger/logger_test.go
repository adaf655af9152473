package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OFFIS-RIT/stencil/pkg/logger"
	"github.com/OFFIS-RIT/stencil/pkg/logger/structured"
)

func TestFacadeDispatchesToAllInstances(t *testing.T) {
	coreA, logsA := observer.New(zapcore.DebugLevel)
	coreB, logsB := observer.New(zapcore.WarnLevel)
	logger.Init(
		structured.NewStructuredLoggerWithCore(coreA),
		structured.NewStructuredLoggerWithCore(coreB),
	)
	t.Cleanup(func() { logger.Init() })

	logger.Debug("[Test] debug", "node_id", 7)
	logger.Warn("[Test] warn", "lineage", "abc/def")
	logger.Log("[Test] plain", "k", "v")

	require.Equal(t, 3, logsA.Len())
	entry := logsA.All()[0]
	assert.Equal(t, "[Test] debug", entry.Message)
	assert.Equal(t, int64(7), entry.ContextMap()["node_id"])
	assert.Equal(t, "v", logsA.All()[2].ContextMap()["k"])

	require.Equal(t, 1, logsB.Len())
	assert.Equal(t, "abc/def", logsB.All()[0].ContextMap()["lineage"])

	logger.Sync()
}

func TestFacadeWithoutInit(t *testing.T) {
	logger.Init()
	assert.NotPanics(t, func() {
		logger.Info("dropped")
		logger.Sync()
	})
}
