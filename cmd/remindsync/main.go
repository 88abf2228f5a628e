package main

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/spf13/cobra"

	"github.com/cuemby/remindsync/pkg/aiparse"
	"github.com/cuemby/remindsync/pkg/api"
	"github.com/cuemby/remindsync/pkg/config"
	"github.com/cuemby/remindsync/pkg/intake"
	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/shared"
	"github.com/cuemby/remindsync/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded once by the root command before any subcommand runs
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remindsync",
	Short: "remindsync - reminders that stay in sync",
	Long: `remindsync keeps a list of reminders, fires a local alert when each one
is due and keeps every signed-in device in step.

Reminders are entered as free text ("Coffee tomorrow 10am", "call mom every
monday") and stored locally or, with a configured identity, in Firestore.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("backend") {
			cfg.Store.Backend, _ = cmd.Flags().GetString("backend")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})
		api.Version = Version
		metrics.SetVersion(Version)
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"remindsync version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", config.DefaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", config.BackendAuto, "Store backend (auto, local, remote)")
}

// session holds the storage opened for one command
type session struct {
	group     *shared.Group
	store     storage.Store
	firestore *firestore.Client
}

// openSession opens the shared group and the configured backend. The shared
// group is opened for both backends because the extension writes intents there.
func openSession(ctx context.Context) (*session, error) {
	group, err := shared.Open(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared storage: %w", err)
	}

	s := &session{group: group}
	opts := storage.Options{Group: group}

	if cfg.UseRemote() {
		app, err := storage.NewFirebaseApp(ctx, cfg.Remote.ProjectID, cfg.Remote.CredentialsFile)
		if err != nil {
			return nil, err
		}
		s.firestore, err = app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		opts.Firestore = s.firestore
		opts.UserID = cfg.Remote.UserID
		opts.DeviceID = cfg.Remote.DeviceID
	}

	s.store, err = storage.Open(opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the store and the Firestore client
func (s *session) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.firestore != nil {
		_ = s.firestore.Close()
	}
}

// newIntake builds the text intake, with the AI parser when enabled
func newIntake() (*intake.Intake, error) {
	if !cfg.AI.Enabled {
		return intake.New(nil, cfg.AI.Timeout), nil
	}

	ds, err := aiparse.NewDeepSeek(cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		return nil, err
	}
	return intake.New(aiparse.NewParser(ds), cfg.AI.Timeout), nil
}
