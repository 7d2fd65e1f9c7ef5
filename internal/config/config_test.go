package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "PXW_PACKAGE_ID", "PXW_GAME_ID", "PXW_ADMIN_CAP_ID", "PXW_NETWORK",
		"PXW_RPC_URL", "PXW_WS_URL", "PXW_KEY_FILE", "PXW_WALLET_SEED", "PXW_DB_FILE",
		"PXW_SUBSCRIBE_EVENTS", "PXW_AUTO_CONNECT", "PXW_DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "testnet", c.Network)
	assert.Equal(t, "0x6", c.ClockID)
	assert.True(t, c.AutoConnect)
	assert.Same(t, c, Get())

	c, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "pxw.db", c.DBFile)
}

func TestLoadConfigFileMergesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pxw.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"package_id":"0xpkg","game_id":"0xgame","port":9090}`), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0xpkg", c.PackageID)
	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, "testnet", c.Network)
	assert.Equal(t, "pxw_key.pem", c.KeyFile)
	assert.NoError(t, c.Validate())
}

func TestLoadConfigInvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pxw.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Port)
	assert.Error(t, c.Validate())
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("PXW_PACKAGE_ID", "0xenv")
	t.Setenv("PXW_NETWORK", "devnet")
	t.Setenv("PXW_SUBSCRIBE_EVENTS", "true")
	t.Setenv("PXW_AUTO_CONNECT", "false")
	t.Setenv("PXW_WALLET_SEED", "0x01")

	path := filepath.Join(t.TempDir(), "pxw.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"package_id":"0xfile"}`), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, c.Port)
	assert.Equal(t, "0xenv", c.PackageID)
	assert.Equal(t, "devnet", c.Network)
	assert.True(t, c.SubscribeEvents)
	assert.False(t, c.AutoConnect)
	assert.Equal(t, "0x01", c.WalletSeed)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("PXW_GAME_ID")
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PXW_GAME_ID=0xdotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PXW_GAME_ID") })

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "0xdotenv", os.Getenv("PXW_GAME_ID"))

	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "0xdotenv", c.GameID)
}
