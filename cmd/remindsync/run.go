package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/remindsync/pkg/api"
	"github.com/cuemby/remindsync/pkg/bridge"
	"github.com/cuemby/remindsync/pkg/events"
	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/notify"
	"github.com/cuemby/remindsync/pkg/reconciler"
	"github.com/cuemby/remindsync/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reminder daemon",
	Long: `Run the reminder daemon in the foreground.

The daemon replays intents queued by the notification extension, keeps one
local alert scheduled per active reminder and prints each alert when it fires.
Intents are drained again on every resync tick.

Signals:
  SIGINT, SIGTERM  shut down
  SIGUSR1          wake: re-read the store and resync alerts`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().Duration("resync-interval", 0, "Override daemon.resync_interval")
	runCmd.Flags().String("metrics-addr", "", "Override daemon.metrics_addr (e.g. :9090)")

	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if d, _ := cmd.Flags().GetDuration("resync-interval"); d > 0 {
		cfg.Daemon.ResyncInterval = d
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Daemon.MetricsAddr = addr
	}

	logger := log.WithComponent("daemon")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	center := notify.NewTimerCenter(func(a notify.Alert) {
		broker.Publish(&events.Event{
			Type:       events.EventAlertDelivered,
			ReminderID: a.ID,
			Message:    a.Title,
			Metadata:   a.Payload,
		})
	})
	defer center.Stop()

	scheduler := notify.NewScheduler(center, s.store)

	// Intents queued while the daemon was down
	drainer := bridge.NewDrainer(s.group, s.store, broker)
	if _, err := drainer.DrainPendingIntents(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to drain pending intents")
	}

	recon := reconciler.NewReconciler(s.store, scheduler, broker)
	recon.SetInterval(cfg.Daemon.ResyncInterval)
	recon.OnUpdate(func(set []*types.Reminder) {
		if err := drainer.Mirror(set); err != nil {
			logger.Warn().Err(err).Msg("Failed to mirror active set to shared storage")
		}
	})
	if err := recon.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}
	defer recon.Stop()

	alerts := broker.Subscribe(events.EventAlertDelivered)
	defer broker.Unsubscribe(alerts)
	go func() {
		for ev := range alerts {
			scheduler.MarkDelivered(ev.ReminderID)
			log.WithReminderID(ev.ReminderID).Info().Str("title", ev.Message).Msg("Alert delivered")
			fmt.Printf("🔔 %s  (%s)\n", ev.Message, ev.ReminderID)
		}
	}()

	collector := metrics.NewCollector(s.store)
	collector.Start()
	defer collector.Stop()

	errCh := make(chan error, 1)
	if cfg.Daemon.MetricsAddr != "" {
		hs := api.NewHealthServer(api.StoreCheck(s.store))
		go func() {
			if err := hs.Start(cfg.Daemon.MetricsAddr); err != nil {
				errCh <- fmt.Errorf("health server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = hs.Shutdown(shutdownCtx)
		}()
		fmt.Printf("✓ Metrics on %s\n", cfg.Daemon.MetricsAddr)
	}

	fmt.Printf("✓ Daemon running (%s backend). Press Ctrl+C to stop.\n", s.store.Backend())

	drainTicker := time.NewTicker(cfg.Daemon.ResyncInterval)
	defer drainTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGUSR1 {
				recon.Wake(ctx, map[string]string{reconciler.PayloadAction: "signal"})
				continue
			}
			fmt.Println("\nShutting down...")
			return nil

		case <-drainTicker.C:
			if _, err := drainer.DrainPendingIntents(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to drain pending intents")
			}

		case err := <-errCh:
			return err

		case <-ctx.Done():
			return nil
		}
	}
}
