package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"wsbook/config"
	"wsbook/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run ^TestNewInvalidLevel$
func TestNewInvalidLevel(t *testing.T) {
	_, err := logger.New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

// go test -v --run ^TestNewWritesFile$
func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wsbook.log")

	log, err := logger.New(config.LogConfig{
		Level:      "info",
		Format:     "json",
		OutputFile: path,
		Service:    "wsbook-test",
	})
	require.NoError(t, err)

	log.Info("hello")
	log.Debug("filtered")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"service":"wsbook-test"`)
	assert.NotContains(t, string(data), "filtered")
}
