package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/remindsync/pkg/shared"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the shared storage database",
	Long: `Write a consistent copy of the shared storage database, which holds the
local reminders and the extension's pending intents.

Restore by stopping the daemon and copying the file back into store.dir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		group, err := shared.Open(cfg.Store.Dir)
		if err != nil {
			return err
		}
		if out == "" {
			out = group.Path() + ".backup"
		}
		if _, err := os.Stat(out); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", out)
			}
		}

		if err := group.Backup(out); err != nil {
			return err
		}
		fmt.Printf("✓ Backup written to %s\n", out)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringP("output", "o", "", "Backup file (default: <store.dir>/group.db.backup)")
	backupCmd.Flags().Bool("force", false, "Overwrite an existing backup")

	rootCmd.AddCommand(backupCmd)
}
