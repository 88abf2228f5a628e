package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/remindsync/pkg/extract"
	"github.com/cuemby/remindsync/pkg/types"
)

var addCmd = &cobra.Command{
	Use:   "add TEXT",
	Short: "Add a reminder from free text",
	Long: `Add a reminder from free text.

The text is parsed for a date, a time of day and a recurrence. The AI parser
is tried first when enabled and the local extractor is used otherwise.

Examples:
  remindsync add "Coffee tomorrow 10am"
  remindsync add "call mom every monday"
  remindsync add "stretch in 20 minutes"
  remindsync add --at 2025-03-10T09:00:00+08:00 "Water plants"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text := strings.Join(args, " ")
		title, _ := cmd.Flags().GetString("title")
		at, _ := cmd.Flags().GetString("at")

		in, err := newIntake()
		if err != nil {
			return err
		}
		draft, err := in.Parse(ctx, text)
		if err != nil {
			return err
		}

		if title != "" {
			draft.Title = title
		}
		if at != "" {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
			draft.At = t
		}

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		r := extract.ToReminder(draft, text, time.Now())
		if err := s.store.Create(ctx, r); err != nil {
			return fmt.Errorf("failed to create reminder: %w", err)
		}

		fmt.Printf("✓ Reminder created: %s\n", r.ID)
		printReminder(os.Stdout, r)
		return nil
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse TEXT",
	Short: "Show how free text would be parsed, without saving",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := newIntake()
		if err != nil {
			return err
		}
		draft, err := in.Parse(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Printf("Title:      %s\n", draft.Title)
		fmt.Printf("At:         %s\n", draft.At.Format(time.RFC3339))
		fmt.Printf("Recurrence: %s\n", describeRule(draft.Recurrence))
		fmt.Printf("Source:     %s\n", draft.Source)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		active, err := s.store.ListActive(cmd.Context())
		if err != nil {
			return err
		}
		if len(active) == 0 {
			fmt.Println("No active reminders")
			return nil
		}

		writeTable(os.Stdout, active, time.Now())
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete ID",
	Short: "Complete a reminder (recurring reminders advance to the next occurrence)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		r, err := s.store.Complete(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if r.IsActive() {
			fmt.Printf("✓ Next occurrence: %s\n", r.TriggerDate.Local().Format(time.RFC1123))
		} else {
			fmt.Printf("✓ Reminder completed: %s\n", r.ID)
		}
		return nil
	},
}

var snoozeCmd = &cobra.Command{
	Use:   "snooze ID",
	Short: "Snooze a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, _ := cmd.Flags().GetInt("minutes")
		if minutes <= 0 {
			return fmt.Errorf("--minutes must be positive")
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		until := time.Now().Add(time.Duration(minutes) * time.Minute)
		r, err := s.store.Snooze(cmd.Context(), args[0], until)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Snoozed until %s\n", r.Effective().Local().Format(time.Kitchen))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete a reminder",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Reminder deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(snoozeCmd)
	rootCmd.AddCommand(deleteCmd)

	addCmd.Flags().String("title", "", "Override the parsed title")
	addCmd.Flags().String("at", "", "Override the parsed instant (RFC 3339)")

	snoozeCmd.Flags().IntP("minutes", "m", 10, "Minutes to snooze")
}

func printReminder(w io.Writer, r *types.Reminder) {
	fmt.Fprintf(w, "  Title:      %s\n", r.Title)
	fmt.Fprintf(w, "  Due:        %s\n", r.Effective().Local().Format(time.RFC1123))
	fmt.Fprintf(w, "  Recurrence: %s\n", describeRule(r.Recurrence))
}

func writeTable(w io.Writer, reminders []*types.Reminder, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDUE\tREPEATS\tSTATE")
	for _, r := range reminders {
		state := ""
		switch {
		case r.IsOverdue(now):
			state = "overdue"
		case r.SnoozedUntil != nil:
			state = "snoozed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Title, r.Effective().Local().Format("2006-01-02 15:04"), describeRule(r.Recurrence), state)
	}
	_ = tw.Flush()
}

// describeRule renders a recurrence rule for humans
func describeRule(rule *types.RecurrenceRule) string {
	if rule == nil || rule.Type == types.RecurrenceNone {
		return "-"
	}

	var desc string
	switch rule.Type {
	case types.RecurrenceDaily:
		desc = "daily"
	case types.RecurrenceWeekly:
		desc = "weekly"
	default:
		n := rule.EffectiveInterval()
		unit := string(rule.EffectiveUnit())
		if n == 1 {
			desc = "every " + unit
		} else {
			desc = fmt.Sprintf("every %d %ss", n, unit)
		}
	}

	if len(rule.DaysOfWeek) > 0 {
		names := make([]string, 0, len(rule.DaysOfWeek))
		for _, d := range rule.DaysOfWeek {
			if d >= 1 && d <= 7 {
				names = append(names, time.Weekday(d - 1).String()[:3])
			}
		}
		desc += " on " + strings.Join(names, ",")
	}
	if rule.TimeRangeStart != "" && rule.TimeRangeEnd != "" {
		desc += fmt.Sprintf(" (%s-%s)", rule.TimeRangeStart, rule.TimeRangeEnd)
	}
	return desc
}
