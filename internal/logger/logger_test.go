package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/linzen78111/pos2/internal/config"
)

func TestBuildLevels(t *testing.T) {
	l, err := Build(config.Observability{ServiceName: "pos", LogLevel: "debug", LogEncoding: "json"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = Build(config.Observability{ServiceName: "pos", LogLevel: "not-a-level", LogEncoding: "console"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}
