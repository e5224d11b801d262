package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestIsDevelopment(t *testing.T) {
	for _, env := range []string{"", "dev", "DEV", "development", "local", "test"} {
		assert.True(t, IsDevelopment(env), env)
	}
	for _, env := range []string{"prod", "production", "staging"} {
		assert.False(t, IsDevelopment(env), env)
	}
}

func TestNew(t *testing.T) {
	log, err := New(Config{Env: "prod", Level: "warn", ServiceName: "study-room"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	dev, err := New(Config{Env: "dev"})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	log, err := New(Config{Env: "test"})
	require.NoError(t, err)
	assert.Same(t, log, OrNop(log))
}
