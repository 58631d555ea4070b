// Package cmd implements the webissues command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/config"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/log"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/tracing"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/application"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/infrastructure"
)

var (
	cfg      config.Config
	cfgFile  string
	shutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "webissues",
	Short: "Command line client for WebIssues servers",
	Long: `webissues talks to a WebIssues issue tracking server: browse
projects, folders and issues, evaluate saved views, and keep a local
snapshot for offline reading.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(ctx)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.webissues/config.yaml)")
	flags.String("url", "", "WebIssues server URL")
	flags.String("login", "", "server login")
	flags.String("data-dir", "", "directory for snapshots and sessions")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("server.url", flags.Lookup("url"))
	_ = viper.BindPFlag("server.login", flags.Lookup("login"))
	_ = viper.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
}

// setup loads configuration and initializes logging and tracing before
// any command runs.
func setup(cmd *cobra.Command, args []string) error {
	defaults := config.Defaults()
	viper.SetDefault("sync.timeout", defaults.Sync.Timeout)
	viper.SetDefault("sync.auto_sync", defaults.Sync.AutoSync)
	viper.SetDefault("sync.auto_sync_interval", defaults.Sync.AutoSyncInterval)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("data_dir", config.DefaultDataDir())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.DefaultDataDir())
	}
	viper.SetEnvPrefix("WEBISSUES")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := initLogging(); err != nil {
		return err
	}

	var err error
	shutdown, err = tracing.Setup(cmd.Context(), cfg.Tracing, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	return nil
}

// reloadConfig re-reads the effective configuration from disk. The
// previous config is kept when the new one fails to load or validate.
func reloadConfig() error {
	if err := viper.ReadInConfig(); err != nil {
		return err
	}
	var next config.Config
	if err := viper.Unmarshal(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	cfg = next
	return nil
}

func initLogging() error {
	level := log.ParseLevel(cfg.Log.Level)
	if cfg.Log.File == "" {
		log.Init(os.Stderr, level)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0750); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // G304: path comes from user config
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	log.Init(f, level)
	return nil
}

// newEnvironment builds a connected environment from the effective
// configuration.
func newEnvironment(ctx context.Context, out *output) (*application.Environment, error) {
	if cfg.Server.URL == "" {
		return nil, fmt.Errorf("no server configured; set server.url or pass --url")
	}
	transport, err := infrastructure.NewHTTPTransport(cfg.Server.URL, cfg.Sync.Timeout)
	if err != nil {
		return nil, err
	}

	var creds application.CredentialsProvider
	if cfg.Server.Password != "" {
		creds = infrastructure.StaticCredentials{Login: cfg.Server.Login, Password: cfg.Server.Password}
	} else {
		creds = &infrastructure.PromptCredentials{In: os.Stdin, Out: out.w, Login: cfg.Server.Login}
	}

	env := application.NewEnvironment(application.NewClient(transport, creds))
	if err := env.Connect(ctx, nil); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Server.URL, err)
	}
	return env, nil
}
