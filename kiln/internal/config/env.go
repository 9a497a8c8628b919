package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const envLiveReloadPort = "KILN_LIVERELOAD_PORT"

// LoadDotEnv loads root/.env into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(root string) error {
	err := godotenv.Load(filepath.Join(root, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(envLiveReloadPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", envLiveReloadPort, err)
		}
		cfg.LiveReload.Port = port
	}
	return nil
}
