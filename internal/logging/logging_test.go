package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"flowchart/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("writes json lines to the rotating file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flowchart.log")
		cfg := config.DefaultConfig().Log
		cfg.File = path

		logger, err := New(cfg, "test")
		require.NoError(t, err)
		logger.Info("appended")
		_ = logger.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		line := strings.TrimSpace(strings.Split(string(data), "\n")[0])
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "appended", entry["msg"])
		assert.Equal(t, "test", entry["logger"])
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		cfg := config.DefaultConfig().Log
		cfg.Level = "loud"
		_, err := New(cfg, "test")
		assert.Error(t, err)
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		cfg := config.DefaultConfig().Log
		cfg.Format = "xml"
		_, err := New(cfg, "test")
		assert.Error(t, err)
	})
}
