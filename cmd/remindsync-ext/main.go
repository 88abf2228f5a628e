package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/remindsync/pkg/bridge"
	"github.com/cuemby/remindsync/pkg/config"
	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/notify"
	"github.com/cuemby/remindsync/pkg/shared"
	"github.com/cuemby/remindsync/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remindsync-ext",
	Short: "Act on a reminder alert from outside the main process",
	Long: `remindsync-ext handles the complete and snooze buttons of a delivered
alert. It only touches the shared storage group: the change is applied there
immediately and queued as an intent that the main process replays against
the configured backend on its next drain.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// group is opened by the root command for every action
var group *shared.Group

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"remindsync-ext version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", config.DefaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().String("dir", "", "Shared storage directory (overrides store.dir)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})

		dir := cfg.Store.Dir
		if d, _ := cmd.Flags().GetString("dir"); d != "" {
			dir = config.ExpandPath(d)
		}
		group, err = shared.Open(dir)
		return err
	}

	snoozeCmd.Flags().IntP("minutes", "m", int(bridge.DefaultSnooze/time.Minute), "Minutes to snooze")
	snoozeCmd.Flags().Bool("hold", false, "Keep running until the snoozed alert fires")

	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(snoozeCmd)
}

var completeCmd = &cobra.Command{
	Use:   "complete ID",
	Short: "Complete the reminder behind an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ext := bridge.NewExtension(group, nil)
		r, err := ext.HandleAction(cmd.Context(), bridge.Action{
			Type:       types.ActionComplete,
			ReminderID: args[0],
		})
		if err != nil {
			return err
		}

		if r.IsActive() {
			fmt.Printf("✓ Next occurrence: %s\n", r.TriggerDate.Local().Format(time.RFC1123))
		} else {
			fmt.Printf("✓ Completed: %s\n", r.Title)
		}
		return nil
	},
}

var snoozeCmd = &cobra.Command{
	Use:   "snooze ID",
	Short: "Snooze the reminder behind an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, _ := cmd.Flags().GetInt("minutes")
		hold, _ := cmd.Flags().GetBool("hold")
		if minutes <= 0 {
			return fmt.Errorf("--minutes must be positive")
		}

		fired := make(chan notify.Alert, 1)
		center := notify.NewTimerCenter(func(a notify.Alert) { fired <- a })
		defer center.Stop()

		ext := bridge.NewExtension(group, center)
		r, err := ext.HandleAction(cmd.Context(), bridge.Action{
			Type:       types.ActionSnooze,
			ReminderID: args[0],
			SnoozeFor:  time.Duration(minutes) * time.Minute,
		})
		if err != nil {
			return err
		}

		fmt.Printf("✓ Snoozed %q until %s\n", r.Title, r.Effective().Local().Format(time.Kitchen))
		if !hold {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case a := <-fired:
			fmt.Printf("🔔 %s\n", a.Title)
		case <-ctx.Done():
		}
		return nil
	},
}
