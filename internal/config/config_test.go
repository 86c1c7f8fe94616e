package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.EchoToSender)
}

func TestValidateReportsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Addr = ""
	cfg.AuthTimeout = 0
	cfg.MaxMessageLength = cfg.MaxFrameSize + 1
	cfg.OutboxSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "addr is required")
	assert.Contains(t, err.Error(), "auth_timeout")
	assert.Contains(t, err.Error(), "max_message_length")
	assert.Contains(t, err.Error(), "outbox_size")
}

func TestUpdateFromOverridesNonZero(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":6000", AuthTimeout: time.Second})

	assert.Equal(t, ":6000", cfg.Addr)
	assert.Equal(t, time.Second, cfg.AuthTimeout)
	assert.Equal(t, Default().HTTPAddr, cfg.HTTPAddr)
}

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default().Addr, cfg.Addr)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "expected default config to be written")
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
addr: ":7000"
auth_timeout: 10s
echo_to_sender: false
seed_users:
  - username: yosif
    password: "101010"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("WIRECHAT_MAX_FRAME_SIZE", "8192")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.AuthTimeout)
	assert.False(t, cfg.EchoToSender)
	assert.Equal(t, 8192, cfg.MaxFrameSize)
	require.Len(t, cfg.SeedUsers, 1)
	assert.Equal(t, "yosif", cfg.SeedUsers[0].Username)
	assert.Equal(t, "101010", cfg.SeedUsers[0].Password)
}
