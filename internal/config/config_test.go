package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 15s
  write_timeout: 2m

database:
  backend: "redis"
  redis:
    host: "localhost"
    port: 6379
    db: 2

ai:
  gemini:
    api_key: "from-file"
    model: "gemini-pro"
    max_output_tokens: 256
  elevenlabs:
    default_voice_id: "21m00Tcm4TlvDq8ikWAM"
    stability: 0.4

logging:
  level: "debug"
  format: "console"
`

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout.Std())

	assert.Equal(t, "redis", cfg.Database.Backend)
	assert.Equal(t, 2, cfg.Database.Redis.DB)

	assert.Equal(t, "from-file", cfg.AI.Gemini.APIKey)
	assert.Equal(t, 256, cfg.AI.Gemini.MaxOutputTokens)
	assert.Equal(t, 0.4, cfg.AI.ElevenLabs.Stability)

	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("ELEVENLABS_API_KEY", "tts-from-env")

	cfg, err := Load(writeConfigFile(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.AI.Gemini.APIKey)
	assert.Equal(t, "tts-from-env", cfg.AI.ElevenLabs.APIKey)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid duration", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, "server:\n  read_timeout: soon\n"))
		assert.Error(t, err)
	})
}
