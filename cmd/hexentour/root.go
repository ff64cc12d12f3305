package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hexentour/pkg/config"
	"hexentour/pkg/db"
	"hexentour/pkg/station"
	"hexentour/pkg/store"
	"hexentour/pkg/version"
)

const (
	defaultConfigPath = "configs/hexentour.yaml"
	defaultEnvPath    = ".env"
)

type rootOptions struct {
	configPath string
	envPath    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "hexentour",
		Short:         "Hexentanzplatz guided AR tour",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Config file path")
	cmd.PersistentFlags().StringVar(&opts.envPath, "env", defaultEnvPath, "Dotenv file with overrides")

	cmd.AddCommand(
		newServeCmd(opts),
		newResetCmd(opts),
		newCatalogCmd(opts),
		newInitConfigCmd(opts),
	)
	return cmd
}

// loadConfig reads the config file and applies environment overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	env, err := config.Env(o.envPath)
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg, env)
	return cfg, nil
}

func initDB(cfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func loadCatalog(cfg *config.Config) (*station.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return station.Default(), nil
	}
	cat, err := station.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}
