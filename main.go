package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/router"
	"github.com/kendall-kelly/taller-reparaciones/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:           "taller",
	Short:         "Repair shop web application",
	Long:          `Taller tracks customer repairs, quotes and final invoices for a kite and sail repair shop.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		fmt.Fprintln(cmd.OutOrStdout(), "Database migration completed successfully")
		return nil
	},
}

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create a staff account for the shop",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		staffOnly, _ := cmd.Flags().GetBool("staff-only")

		_, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		user, err := services.NewUserService(config.GetDB()).CreateAdmin(cmd.Context(), username, password, !staffOnly)
		if err != nil {
			var verr *services.ValidationError
			if errors.As(err, &verr) {
				for field, msg := range verr.Fields {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
				}
			}
			return fmt.Errorf("failed to create user %q: %w", username, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created user %q (id %d, superuser: %t)\n", user.Username, user.ID, user.IsSuperuser)
		return nil
	},
}

func init() {
	createSuperuserCmd.Flags().StringP("username", "u", "", "Login name")
	createSuperuserCmd.Flags().StringP("password", "p", "", "Password")
	createSuperuserCmd.Flags().Bool("staff-only", false, "Create a staff member without superuser rights")
	_ = createSuperuserCmd.MarkFlagRequired("username")
	_ = createSuperuserCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createSuperuserCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, installs the global logger and opens a
// migrated database.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(logger)
	if cfg.EnvFile != "" {
		logger.Info("loaded environment file", zap.String("file", cfg.EnvFile))
	}

	if err := config.ConnectDatabase(cfg); err != nil {
		return nil, nil, err
	}
	if err := models.AutoMigrate(config.GetDB()); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("database migration completed")

	return cfg, logger, nil
}

func serve() error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	storage, err := services.InitStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.InitUploadService(storage)
	if _, err := services.InitJournal(ctx, cfg, config.GetDB()); err != nil {
		return fmt.Errorf("failed to initialize status journal: %w", err)
	}
	gateway, err := services.InitPaymentGateway(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize payment gateway: %w", err)
	}
	logger.Info("services ready",
		zap.String("storage", cfg.StorageBackend),
		zap.Bool("dynamodb_journal", cfg.DynamoDBTable != ""),
		zap.Bool("payments", gateway != nil),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Setup(cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("server exited")
	return nil
}
