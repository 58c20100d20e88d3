package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/stitchflow-website/dirsync/database"
)

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert database migrations",
		Long: `Revert applied migrations, newest first. Reverting drops the tables that
hold sync runs, imported users, grants and scopes, so their data is lost.

Examples:
  # Revert the newest migration
  dirsync-api migrate down --config config.yaml --num-steps 1 --yes

  # Revert every migration
  dirsync-api migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	}
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	steps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if steps > math.MaxInt32 {
		return fmt.Errorf("number of steps exceeds maximum allowed value")
	}

	_, connString, err := loadDatabaseConfig(cmd)
	if err != nil {
		return err
	}

	scope := "ALL migrations"
	if steps > 0 {
		scope = fmt.Sprintf("%d migration(s)", steps)
	}
	ok, err := confirm(cmd, fmt.Sprintf("WARNING: reverting %s deletes synced data. Continue?", scope))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("migration cancelled by user")
	}

	m, err := database.GetMigrate(connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	slog.Warn("Reverting database migrations", "scope", scope)
	if steps > 0 {
		err = m.Steps(-int(steps)) // #nosec G115 -- bounded above
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	logSchemaVersion(connString)
	return nil
}
