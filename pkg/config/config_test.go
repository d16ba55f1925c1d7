package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://crm.example.com/api
company_id: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://crm.example.com/api", cfg.API.BaseURL)
	require.Equal(t, 30*time.Second, cfg.API.Timeout.Std())
	require.Equal(t, 500*time.Millisecond, cfg.Sync.Debounce.Std())
	require.Equal(t, time.Second, cfg.Sync.RecoveryDelay.Std())
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://file.example.com
  token: file-token
company_id: 3
`)
	t.Setenv("DESKWIRE_API_TOKEN", "env-token")
	t.Setenv("DESKWIRE_COMPANY_ID", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://file.example.com", cfg.API.BaseURL)
	require.Equal(t, "env-token", cfg.API.Token)
	require.Equal(t, int64(9), cfg.CompanyID)
}

func TestLoadParsesDurationStrings(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://crm.example.com
  timeout: 10s
company_id: 3
sync:
  debounce: 800ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.API.Timeout.Std())
	require.Equal(t, 800*time.Millisecond, cfg.Sync.Debounce.Std())
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
api:
  token: t
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsRedisWithoutAddr(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://crm.example.com
company_id: 3
redis:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRedisDefaultsGroupAndConsumer(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://crm.example.com
company_id: 3
redis:
  enabled: true
  addr: localhost:6379
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "deskwire", cfg.Redis.Group)
	require.NotEmpty(t, cfg.Redis.Consumer)
}
