// Command gateway serves the metered REST API gateway.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/apigate-dev/restgateway/internal/app"
	"github.com/apigate-dev/restgateway/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "gateway",
	Short:         "Metered REST API gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server until interrupted",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if errMigrate := app.Migrate(cmd.Context(), config.AppConfig{ConfigPath: configPath}); errMigrate != nil {
			return errMigrate
		}
		log.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return app.RunServer(cmd.Context(), config.AppConfig{ConfigPath: configPath})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if errRun := rootCmd.ExecuteContext(ctx); errRun != nil {
		log.WithError(errRun).Fatal("gateway stopped")
	}
}
