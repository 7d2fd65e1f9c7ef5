// Package config centralizes runtime configuration for pxw. It loads a
// JSON configuration file, applies environment overrides (optionally read
// from a .env file) and exposes a process-wide configuration with sensible
// defaults. Tests and development builds use defaults when the file is not
// present. Operators point CONFIG_FILE at a JSON file or set the PXW_*
// variables directly.
package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds configurable options for the pxw service. The contract
// identifiers are fixed per deployment and cannot be changed at runtime.
type Config struct {
	PackageID       string `json:"package_id"`
	GameID          string `json:"game_id"`
	AdminCapID      string `json:"admin_cap_id"`
	ClockID         string `json:"clock_id"`
	Network         string `json:"network"`
	RPCURL          string `json:"rpc_url"`
	WSURL           string `json:"ws_url"`
	Port            int    `json:"port"`
	KeyFile         string `json:"key_file"`
	WalletSeed      string `json:"wallet_seed"` // hex ed25519 seed; overrides KeyFile
	DBFile          string `json:"db_file"`
	BackupsToKeep   int    `json:"backups_to_keep"`
	SubscribeEvents bool   `json:"subscribe_events"`
	AutoConnect     bool   `json:"auto_connect"`
	Debug           bool   `json:"debug"`
}

var cfg *Config

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		ClockID:       "0x6",
		Network:       "testnet",
		RPCURL:        "https://fullnode.testnet.sui.io:443",
		WSURL:         "wss://fullnode.testnet.sui.io:443",
		Port:          8080,
		KeyFile:       "pxw_key.pem",
		DBFile:        "pxw.db",
		BackupsToKeep: 5,
		AutoConnect:   true,
	}
}

// LoadEnv reads KEY=value pairs from the given .env files (".env" when
// none are named) into the process environment. Variables already set win.
// Missing files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// LoadConfig reads a JSON file at path and applies environment overrides.
// If the file does not exist or cannot be parsed, defaults are used (and no
// error is returned) so the application runs in development with minimal
// friction.
func LoadConfig(path string) (*Config, error) {
	def := Defaults()
	c := *def

	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			var fileCfg Config
			if err := json.Unmarshal(b, &fileCfg); err == nil {
				c = fileCfg
				merge(&c, def)
			}
		}
	}

	applyEnv(&c)
	cfg = &c
	return cfg, nil
}

// merge fills zero-value fields of c from def.
func merge(c, def *Config) {
	if c.ClockID == "" {
		c.ClockID = def.ClockID
	}
	if c.Network == "" {
		c.Network = def.Network
	}
	if c.RPCURL == "" {
		c.RPCURL = def.RPCURL
	}
	if c.WSURL == "" {
		c.WSURL = def.WSURL
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.KeyFile == "" {
		c.KeyFile = def.KeyFile
	}
	if c.DBFile == "" {
		c.DBFile = def.DBFile
	}
	if c.BackupsToKeep == 0 {
		c.BackupsToKeep = def.BackupsToKeep
	}
}

func applyEnv(c *Config) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("PXW_PACKAGE_ID", &c.PackageID)
	str("PXW_GAME_ID", &c.GameID)
	str("PXW_ADMIN_CAP_ID", &c.AdminCapID)
	str("PXW_NETWORK", &c.Network)
	str("PXW_RPC_URL", &c.RPCURL)
	str("PXW_WS_URL", &c.WSURL)
	str("PXW_KEY_FILE", &c.KeyFile)
	str("PXW_WALLET_SEED", &c.WalletSeed)
	str("PXW_DB_FILE", &c.DBFile)
	boolean("PXW_SUBSCRIBE_EVENTS", &c.SubscribeEvents)
	boolean("PXW_AUTO_CONNECT", &c.AutoConnect)
	boolean("PXW_DEBUG", &c.Debug)

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Port = p
		}
	}
}

// Validate reports the settings pxw cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.PackageID == "" {
		missing = append(missing, "package_id (PXW_PACKAGE_ID)")
	}
	if c.GameID == "" {
		missing = append(missing, "game_id (PXW_GAME_ID)")
	}
	if len(missing) > 0 {
		return errors.New("missing configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

// Get returns the loaded configuration. If LoadConfig hasn't been called
// yet, it returns defaults.
func Get() *Config {
	if cfg == nil {
		LoadConfig("")
	}
	return cfg
}
