package cmd

import (
	"fmt"
	"strconv"

	"github.com/RubachokBoss/plagiarism-checker/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE:      runMigrate,
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the migration version without running migrations, clearing the dirty flag",
	Args:  cobra.ExactArgs(1),
	RunE:  runMigrateForce,
}

func init() {
	migrateCmd.AddCommand(migrateForceCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	migrator, err := database.NewMigrator(cfg.Database)
	if err != nil {
		return err
	}
	defer migrator.Close()

	switch direction {
	case "up":
		if err := migrator.Up(); err != nil {
			return err
		}
		log.Info().Msg("Migrations applied successfully")
	case "down":
		if err := migrator.Down(); err != nil {
			return err
		}
		log.Info().Msg("Migrations rolled back successfully")
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
	}
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}

	migrator, err := database.NewMigrator(cfg.Database)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Force(version); err != nil {
		return err
	}
	log.Info().Int("version", version).Msg("Migration version forced")
	return nil
}
