package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelwar.app/pxw/internal/config"
	"pixelwar.app/pxw/internal/identity"
)

func TestLoadWalletPrefersSeed(t *testing.T) {
	seed := strings.Repeat("07", 32)
	cfg := &config.Config{WalletSeed: seed, KeyFile: filepath.Join(t.TempDir(), "unused.pem")}

	id, err := loadWallet(cfg)
	require.NoError(t, err)
	want, err := identity.FromSeedHex(seed)
	require.NoError(t, err)
	assert.Equal(t, want.Address(), id.Address())
	assert.NoFileExists(t, cfg.KeyFile)

	cfg.WalletSeed = ""
	fromFile, err := loadWallet(cfg)
	require.NoError(t, err)
	assert.FileExists(t, cfg.KeyFile)
	assert.NotEqual(t, want.Address(), fromFile.Address())
}
