package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/entropydec/gsrb/internal/config"
)

type syncBuffer struct {
	strings.Builder
}

func (b *syncBuffer) Sync() error { return nil }

func testLoggerConfig() config.LoggerConfig {
	return config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "gsrb-test",
		Colors:      config.ColorConfig{Info: "green", Error: "red"},
	}
}

func TestInitializeWritesToConsole(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(testLoggerConfig(), zapcore.Lock(zapcore.AddSync(buf)))

	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("repair engine online")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "repair engine online")
	assert.Contains(t, out, "gsrb-test.")
	assert.Contains(t, out, "INFO")
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(testLoggerConfig(), zapcore.Lock(zapcore.AddSync(first)))
	Initialize(testLoggerConfig(), zapcore.Lock(zapcore.AddSync(second)))

	GetLogger().Info("only once")
	_ = GetLogger().Sync()

	assert.Contains(t, first.String(), "only once")
	assert.Empty(t, second.String(), "the second initialization must be a no-op")
}

func TestGetLoggerBeforeInitializeFallsBack(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig()
	cfg.Level = "chatty"

	buf := &syncBuffer{}
	Initialize(cfg, zapcore.Lock(zapcore.AddSync(buf)))

	GetLogger().Debug("hidden")
	GetLogger().Info("visible")
	_ = GetLogger().Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}
