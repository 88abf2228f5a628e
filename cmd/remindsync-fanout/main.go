package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/spf13/cobra"

	"github.com/cuemby/remindsync/pkg/api"
	"github.com/cuemby/remindsync/pkg/config"
	"github.com/cuemby/remindsync/pkg/fanout"
	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remindsync-fanout",
	Short: "Wake every device of a user when their reminders change",
	Long: `remindsync-fanout watches reminder documents in Firestore and sends a
silent push to each registered device of the owning user, so every surface
re-reads its reminders without waiting for its next foreground.

It also serves the device registration API and prunes registrations that
have not been refreshed for 30 days.`,
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
		if cmd.Flags().Changed("dry-run") {
			cfg.Fanout.DryRun, _ = cmd.Flags().GetBool("dry-run")
		}

		log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
		api.Version = Version
		metrics.SetVersion(Version)
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"remindsync-fanout version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", config.DefaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Log pushes instead of sending them")

	serveCmd.Flags().String("listen", "", "Override fanout.listen_addr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}

// backend is the wiring shared by serve and sweep
type backend struct {
	firestore *firestore.Client
	registry  fanout.Registry
	fanout    *fanout.Fanout
}

// openBackend connects to Firebase unless running a dry run without a
// project, in which case registrations live in memory
func openBackend(ctx context.Context) (*backend, error) {
	b := &backend{}

	if cfg.Fanout.DryRun && cfg.Remote.ProjectID == "" {
		b.registry = fanout.NewMemoryRegistry()
		b.fanout = fanout.New(b.registry, fanout.LogPusher{}, fanout.Options{ExcludeOrigin: cfg.Fanout.ExcludeOrigin})
		return b, nil
	}

	app, err := storage.NewFirebaseApp(ctx, cfg.Remote.ProjectID, cfg.Remote.CredentialsFile)
	if err != nil {
		return nil, err
	}
	b.firestore, err = app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	b.registry = fanout.NewFirestoreRegistry(b.firestore)

	var pusher fanout.Pusher = fanout.LogPusher{}
	if !cfg.Fanout.DryRun {
		pusher, err = fanout.NewFCMPusher(ctx, app)
		if err != nil {
			b.Close()
			return nil, err
		}
	}

	b.fanout = fanout.New(b.registry, pusher, fanout.Options{ExcludeOrigin: cfg.Fanout.ExcludeOrigin})
	return b, nil
}

func (b *backend) Close() {
	if b.firestore != nil {
		_ = b.firestore.Close()
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the registration API, watch reminders and sweep stale devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.Fanout.ListenAddr = addr
		}
		logger := log.WithComponent("fanout-server")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		sweeper, err := fanout.NewSweeper(b.fanout, cfg.Fanout.SweepSchedule)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer sweeper.Stop()
		fmt.Printf("✓ Stale-device sweep scheduled, next run %s\n", sweeper.Next().Format(time.RFC3339))

		errCh := make(chan error, 2)

		if b.firestore != nil {
			watcher := fanout.NewWatcher(b.firestore, func(ctx context.Context, c fanout.Change) {
				if _, err := b.fanout.HandleChange(ctx, c); err != nil {
					log.WithUserID(c.UserID).Warn().Err(err).
						Str("reminder_id", c.ReminderID).
						Msg("Fan-out failed")
				}
			})
			go func() {
				if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
					errCh <- fmt.Errorf("watcher error: %v", err)
				}
			}()
			fmt.Println("✓ Watching reminder changes")
		} else {
			fmt.Println("! No Firestore project configured, watcher disabled")
		}

		health := api.NewHealthServer(api.RegistryCheck(b.registry))
		server := api.NewServer(b.registry, health)
		go func() {
			if err := server.Start(cfg.Fanout.ListenAddr); err != nil {
				errCh <- fmt.Errorf("API server error: %v", err)
			}
		}()
		fmt.Printf("✓ API listening on %s\n", cfg.Fanout.ListenAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err = <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn().Err(shutdownErr).Msg("API shutdown failed")
		}

		fmt.Println("✓ Shutdown complete")
		return err
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Prune stale device registrations once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		n, err := b.fanout.SweepStale(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("✓ Pruned %d stale device(s)\n", n)
		return nil
	},
}
