package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvAddr = "HEXENTOUR_ADDR"
	EnvDB   = "HEXENTOUR_DB"
)

// Env collects overrides from a dotenv file, if present, and the process
// environment. Process variables win.
func Env(dotenvPath string) (map[string]string, error) {
	env := map[string]string{}
	if dotenvPath != "" {
		vals, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			maps.Copy(env, vals)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		}
	}
	for _, k := range []string{EnvAddr, EnvDB} {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv applies overrides collected by Env.
func ApplyEnv(cfg *Config, env map[string]string) {
	if v := env[EnvAddr]; v != "" {
		cfg.Server.Address = v
	}
	if v := env[EnvDB]; v != "" {
		cfg.DB.Path = v
	}
}
