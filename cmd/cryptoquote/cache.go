package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/cryptoquote/internal/application"
	"github.com/sawpanic/cryptoquote/internal/config"
	"github.com/sawpanic/cryptoquote/internal/directory"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the cached coin list",
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Download the coin list and replace the cache",
		Args:  cobra.NoArgs,
		RunE:  runCacheRefresh,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the cached coin list",
		Args:  cobra.NoArgs,
		RunE:  runCacheClear,
	}

	cacheCmd.AddCommand(refreshCmd, clearCmd)
	return cacheCmd
}

// newCacheLoader builds a loader that retries automatically, since the cache
// commands never prompt.
func newCacheLoader(cfg *config.Config) (*directory.Loader, directory.Store, func() error, error) {
	store, closeStore, err := application.NewStore(cfg.Directory)
	if err != nil {
		return nil, nil, nil, err
	}
	loader := directory.NewLoader(store, application.NewProvider(cfg, nil), directory.Config{
		MaxAge: cfg.Directory.MaxAge,
		Policy: application.NewPolicy(cfg.Directory, nil, false),
	}, nil)
	return loader, store, closeStore, nil
}

func runCacheRefresh(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	loader, store, closeStore, err := newCacheLoader(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := loader.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh coin list: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cached %d coins in %s\n", len(res.Directory), store.Describe())
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	loader, store, closeStore, err := newCacheLoader(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := loader.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clear coin list: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed cached coin list from %s\n", store.Describe())
	return nil
}
