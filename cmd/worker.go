package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/RubachokBoss/plagiarism-checker/internal/app"
	"github.com/RubachokBoss/plagiarism-checker/internal/database"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume uploaded documents from RabbitMQ without serving HTTP",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}

	application, err := app.New(cfg, log, db)
	if err != nil {
		db.Close()
		return err
	}

	runErr := application.RunWorker(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown gracefully")
	}
	return runErr
}
