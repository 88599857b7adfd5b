package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Server.URL)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 100, cfg.Client.MinStoryChars)
	assert.Equal(t, "memory", cfg.Stub.Store)
	assert.False(t, cfg.Client.StrictAdvance)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storyforge.yaml")
	body := `
server:
  url: http://stub:9000
poll:
  interval: 500ms
client:
  min_story_chars: 50
  strict_advance: true
stub:
  store: redis
  redis_addr: redis:6379
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://stub:9000", cfg.Server.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 50, cfg.Client.MinStoryChars)
	assert.True(t, cfg.Client.StrictAdvance)
	assert.Equal(t, "redis", cfg.Stub.Store)
	assert.Equal(t, "redis:6379", cfg.Stub.RedisAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storyforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  url: http://file:1\n"), 0o600))

	t.Setenv("STORYFORGE_SERVER_URL", "http://env:2")
	t.Setenv("STORYFORGE_POLL_INTERVAL", "3s")
	t.Setenv("STORYFORGE_STRICT_ADVANCE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", cfg.Server.URL)
	assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
	assert.True(t, cfg.Client.StrictAdvance)
}

func TestLoadRejectsBadStore(t *testing.T) {
	t.Setenv("STORYFORGE_STUB_STORE", "etcd")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
