package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment keys that override the config file.
const (
	EnvDebug               = "FULLTEXT_DEBUG"
	EnvHost                = "FULLTEXT_HOST"
	EnvPort                = "FULLTEXT_PORT"
	EnvBackend             = "FULLTEXT_BACKEND"
	EnvDatabasePath        = "FULLTEXT_DATABASE_PATH"
	EnvRowTable            = "FULLTEXT_ROW_TABLE"
	EnvBleveIndexPath      = "FULLTEXT_BLEVE_INDEX_PATH"
	EnvContentDatabasePath = "FULLTEXT_CONTENT_DATABASE_PATH"
	EnvStrictReferences    = "FULLTEXT_STRICT_REFERENCES"
)

// ApplyEnv loads a .env file (from the working directory, then configDir) without
// overriding variables already set, and copies FULLTEXT_* values onto cfg.
func ApplyEnv(cfg *Config, configDir string) error {
	_ = godotenv.Load()
	if configDir != "" {
		if envPath := filepath.Join(configDir, ".env"); fileExists(envPath) {
			_ = godotenv.Load(envPath)
		}
	}

	if v, ok := os.LookupEnv(EnvDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		cfg.Debug = b
	}
	if v, ok := os.LookupEnv(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := os.LookupEnv(EnvStrictReferences); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvStrictReferences, err)
		}
		cfg.Search.StrictReferences = b
	}
	setString(&cfg.Server.Host, EnvHost)
	setString(&cfg.Storage.Backend, EnvBackend)
	setString(&cfg.Storage.DatabasePath, EnvDatabasePath)
	setString(&cfg.Storage.Table, EnvRowTable)
	setString(&cfg.Storage.BleveIndexPath, EnvBleveIndexPath)
	setString(&cfg.Storage.ContentDatabasePath, EnvContentDatabasePath)
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
