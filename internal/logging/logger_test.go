package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"oppradar/internal/config"
)

func TestNewBuildsConfiguredLogger(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.log")
	log, err := New(config.LoggingConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)
	log.Info("hello")
	require.NoError(t, log.Sync())
	assert.FileExists(t, path)
}

func TestNewRejectsUnknownLevelAndFormat(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "shout"})
	assert.Error(t, err)
	_, err = New(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}
