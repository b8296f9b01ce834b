package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"snapbot/pkg/storage"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove everything in the temporary download directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		store, err := storage.NewManager(cfg.Download.TempDir)
		if err != nil {
			return err
		}
		removed, err := store.Clean()
		if err != nil {
			return fmt.Errorf("failed to clean %s: %w", store.Dir(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Removed %d entries from %s\n", removed, store.Dir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
