package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, time.Minute, cfg.RateLimit.Cooldown)
	assert.Equal(t, 3, cfg.RateLimit.MaxRetries)
	assert.Equal(t, time.Second, cfg.RateLimit.RetryBaseDelay)

	assert.Equal(t, 12, cfg.Download.MaxParallel)
	assert.Equal(t, 500*time.Millisecond, cfg.Download.ItemDelay)
	assert.Equal(t, time.Second, cfg.Download.BatchDelay)
	assert.Equal(t, 8192, cfg.Download.MessageLimit)
	assert.Equal(t, []string{"all"}, cfg.Download.MediaTypes)

	assert.Equal(t, "all_message.json", cfg.Output.MessageLogName)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Telegram.APIID = 12345
		cfg.Telegram.APIHash = "hash"
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing api credentials", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_id")
		assert.Contains(t, err.Error(), "api_hash")
	})

	t.Run("zero parallel downloads", func(t *testing.T) {
		cfg := valid()
		cfg.Download.MaxParallel = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty media types", func(t *testing.T) {
		cfg := valid()
		cfg.Download.MediaTypes = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "loud"
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TGEXPORT_API_ID", "4242")
	t.Setenv("TGEXPORT_API_HASH", "abcdef")
	t.Setenv("TGEXPORT_MEDIA_TYPES", "photo, PDF ,video")
	t.Setenv("TGEXPORT_MAX_PARALLEL", "6")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 4242, cfg.Telegram.APIID)
	assert.Equal(t, "abcdef", cfg.Telegram.APIHash)
	assert.Equal(t, []string{"photo", "pdf", "video"}, cfg.Download.MediaTypes)
	assert.Equal(t, 6, cfg.Download.MaxParallel)
}

func TestLoadFromEnvInvalidID(t *testing.T) {
	t.Setenv("TGEXPORT_API_ID", "not-a-number")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
telegram:
  api_id: 777
  api_hash: filehash
download:
  max_parallel: 4
  media_types: [photo]
output:
  base_directory: /tmp/exports
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 777, cfg.Telegram.APIID)
	assert.Equal(t, "filehash", cfg.Telegram.APIHash)
	assert.Equal(t, 4, cfg.Download.MaxParallel)
	assert.Equal(t, []string{"photo"}, cfg.Download.MediaTypes)
	assert.Equal(t, "/tmp/exports", cfg.Output.BaseDirectory)
	// untouched defaults survive a partial file
	assert.Equal(t, 8192, cfg.Download.MessageLimit)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile("/nonexistent/config.yaml"))
}

func TestMergeFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFlags(map[string]interface{}{
		"output":      "/data/tg",
		"parallel":    3,
		"media-types": []string{"photo", "video"},
		"log-level":   "debug",
	})

	assert.Equal(t, "/data/tg", cfg.Output.BaseDirectory)
	assert.Equal(t, 3, cfg.Download.MaxParallel)
	assert.Equal(t, []string{"photo", "video"}, cfg.Download.MediaTypes)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
