package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/storage"
)

var backupCmd = &cobra.Command{
	Use:   "backup FILE",
	Short: "Write a full backup of the badger store",
	Long: `Write a full backup of the badger store to FILE. Stop the daemon first;
it holds the store's lock while running.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Load a backup into the badger store",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

// badgerStore returns the open badger store or a user error for other backends.
func badgerStore() (*storage.DB, error) {
	db, ok := ctx.Store.(*storage.DB)
	if !ok {
		return nil, errors.NewUserError("backup is only supported for the badger backend",
			"Use pg_dump for the postgres backend.")
	}
	return db, nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	db, err := badgerStore()
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	if err := db.Backup(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]string{"status": "ok", "file": args[0]})
	}
	ctx.CLIFormatter().Success("Backup written to " + args[0])
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	db, err := badgerStore()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	if err := db.Restore(f); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]string{"status": "ok", "file": args[0]})
	}
	ctx.CLIFormatter().Success("Restored " + args[0])
	return nil
}
