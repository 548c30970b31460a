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

	"github.com/spf13/cobra"

	"github.com/adri6412/cloud-saves-server/internal/client"
	"github.com/adri6412/cloud-saves-server/internal/config"
	"github.com/adri6412/cloud-saves-server/internal/httpapi"
	"github.com/adri6412/cloud-saves-server/internal/lock"
	"github.com/adri6412/cloud-saves-server/internal/logging"
	"github.com/adri6412/cloud-saves-server/internal/prompt"
	"github.com/adri6412/cloud-saves-server/internal/savestore"
	"github.com/adri6412/cloud-saves-server/internal/storage"
	"github.com/adri6412/cloud-saves-server/internal/userstore"
	"github.com/adri6412/cloud-saves-server/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

type overrideFlags struct {
	ServerURL   string
	Listen      string
	UsersFile   string
	Storage     string
	LocalPath   string
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
}

func main() {
	root := &rootFlags{}
	overrides := &overrideFlags{}

	rootCmd := &cobra.Command{
		Use:   "cloudsave",
		Short: "Synchronize emulator save directories with a central server",
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")

	rootCmd.PersistentFlags().StringVar(&overrides.ServerURL, "server-url", "", "Sync server base URL")
	rootCmd.PersistentFlags().StringVar(&overrides.Listen, "listen", "", "Server listen address")
	rootCmd.PersistentFlags().StringVar(&overrides.UsersFile, "users-file", "", "Server user record file")
	rootCmd.PersistentFlags().StringVar(&overrides.Storage, "storage", "", "Server storage backend (local, s3)")
	rootCmd.PersistentFlags().StringVar(&overrides.LocalPath, "storage-path", "", "Local storage path")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Endpoint, "s3-endpoint", "", "S3 endpoint (MinIO/OSS)")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Bucket, "s3-bucket", "", "S3 bucket")
	rootCmd.PersistentFlags().StringVar(&overrides.S3AccessKey, "s3-access-key", "", "S3 access key")
	rootCmd.PersistentFlags().StringVar(&overrides.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Region, "s3-region", "", "S3 region")

	rootCmd.AddCommand(newServeCmd(root, overrides))
	rootCmd.AddCommand(newUploadCmd(root, overrides))
	rootCmd.AddCommand(newDownloadCmd(root, overrides))
	rootCmd.AddCommand(newRegisterCmd(root, overrides))
	rootCmd.AddCommand(newValidateCmd(root, overrides))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(root, overrides)
			if err != nil {
				return err
			}
			logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)

			backend, err := storage.New(cfg.Server.Storage)
			if err != nil {
				return err
			}
			users := userstore.Open(cfg.Server.UsersFile)
			saves := savestore.New(backend)
			api := httpapi.NewServer(users, saves, logger)

			srv := &http.Server{
				Addr:              cfg.Server.Listen,
				Handler:           api.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("listen", cfg.Server.Listen).Msg("server started")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func newUploadCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <emulator>",
		Short: "Upload the local save directory for an emulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(root, overrides, func(ctx context.Context, syncer *client.Syncer) error {
				return syncer.Upload(ctx, args[0])
			})
		},
	}
}

func newDownloadCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "download <emulator>",
		Short: "Download the server copy of an emulator's saves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(root, overrides, func(ctx context.Context, syncer *client.Syncer) error {
				return syncer.Download(ctx, args[0])
			})
		},
	}
}

func newRegisterCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Obtain credentials without transferring saves",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(root, overrides, func(ctx context.Context, _ *client.Syncer) error {
				return nil // credential flow runs before the op
			})
		},
	}
}

func newValidateCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the stored credentials against the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(root, overrides)
			if err != nil {
				return err
			}
			api := client.NewAPI(cfg.Client.ServerURL, cfg.Client.APIKey)
			if err := api.Validate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("credentials ok")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cloudsave %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func runClient(root *rootFlags, overrides *overrideFlags, op func(context.Context, *client.Syncer) error) error {
	cfg, cfgPath, err := loadConfig(root, overrides)
	if err != nil {
		return err
	}
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)

	if cfgPath == "" {
		cfgPath = config.DefaultClientPath
		if err := config.WriteSkeleton(cfgPath); err != nil {
			return fmt.Errorf("write config skeleton: %w", err)
		}
		logger.Info().Str("path", cfgPath).Msg("created config, edit save_paths before syncing")
	}

	guard, err := lock.Acquire(cfg.Global.LockFile)
	if err != nil {
		return err
	}
	defer guard.Release()

	api := client.NewAPI(cfg.Client.ServerURL, cfg.Client.APIKey)
	syncer := client.NewSyncer(cfg, cfgPath, api, prompt.NewTerminal(), logger)

	ctx := context.Background()
	if err := syncer.EnsureCredentials(ctx); err != nil {
		return err
	}
	return op(ctx, syncer)
}

func loadConfig(root *rootFlags, overrides *overrideFlags) (*config.Config, string, error) {
	cfg, path, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	applyOverrides(cfg, root, overrides)
	return cfg, path, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.ServerURL != "" {
		cfg.Client.ServerURL = overrides.ServerURL
	}
	if overrides.Listen != "" {
		cfg.Server.Listen = overrides.Listen
	}
	if overrides.UsersFile != "" {
		cfg.Server.UsersFile = overrides.UsersFile
	}
	if overrides.Storage != "" {
		cfg.Server.Storage.Backend = overrides.Storage
	}
	if overrides.LocalPath != "" {
		cfg.Server.Storage.Local.Path = overrides.LocalPath
	}
	if overrides.S3Endpoint != "" {
		cfg.Server.Storage.S3.Endpoint = overrides.S3Endpoint
	}
	if overrides.S3Bucket != "" {
		cfg.Server.Storage.S3.Bucket = overrides.S3Bucket
	}
	if overrides.S3AccessKey != "" {
		cfg.Server.Storage.S3.AccessKey = overrides.S3AccessKey
	}
	if overrides.S3SecretKey != "" {
		cfg.Server.Storage.S3.SecretKey = overrides.S3SecretKey
	}
	if overrides.S3Region != "" {
		cfg.Server.Storage.S3.Region = overrides.S3Region
	}
}
