package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestMainFormats(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := Wrap(zap.New(core))

	logger.Main("Successfully loaded %d API%s", 2, "s")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Successfully loaded 2 APIs", logs.All()[0].Message)
}

func TestModuleTagsName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := Wrap(zap.New(core))

	logger.Module("weather").Warn("slow")

	entries := logs.FilterField(zap.String("module", "weather")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "slow", entries[0].Message)
}

func TestWrapNil(t *testing.T) {
	logger := Wrap(nil)
	assert.NotPanics(t, func() { logger.Info("discarded") })
}
