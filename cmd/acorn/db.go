package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/acornrpa/acorn/internal/config"
	"github.com/acornrpa/acorn/internal/store"
)

// loadConfig reads the config file, falling back to defaults when the
// file does not exist so a bare "acorn run" works out of the box.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// connectFromConfig opens the configured database and returns a migrated
// store.
func connectFromConfig(path string) (*config.Config, *store.Store, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(db); err != nil {
		return nil, nil, err
	}
	return cfg, store.New(db), nil
}

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.Database)
			if err != nil {
				return err
			}
			if err := store.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema up to date")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}
