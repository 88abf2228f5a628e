package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/remindsync/pkg/extract"
	"github.com/cuemby/remindsync/pkg/storage"
	"github.com/cuemby/remindsync/pkg/types"
)

// Manifest identifiers
const (
	ManifestAPIVersion = "remindsync/v1"
	ManifestKind       = "ReminderList"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a reminder manifest",
	Long: `Apply reminders from a YAML manifest.

Entries with an id that already exists are updated, everything else is
created. An entry may give "text" instead of a trigger date, in which case
the text is parsed like "remindsync add".

Example:
  apiVersion: remindsync/v1
  kind: ReminderList
  reminders:
    - title: Water plants
      triggerDate: 2025-03-10T09:00:00+08:00
      recurrence:
        type: weekly
        daysOfWeek: [2, 5]
    - text: Coffee tomorrow 10am

  remindsync apply -f reminders.yaml`,
	RunE: runApply,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export active reminders as a manifest",
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
		return encodeManifest(os.Stdout, active)
	},
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(exportCmd)
}

// Manifest is a list of reminders in YAML form
type Manifest struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Reminders  []ManifestEntry `yaml:"reminders"`
}

// ManifestEntry is a reminder, or free text to be parsed into one
type ManifestEntry struct {
	types.Reminder `yaml:",inline"`
	Text           string `yaml:"text,omitempty"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}

	reminders, err := decodeManifest(data, time.Now())
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	created, updated := 0, 0
	for _, r := range reminders {
		isNew, err := applyReminder(cmd.Context(), s.store, r)
		if err != nil {
			return fmt.Errorf("failed to apply %q: %w", r.Title, err)
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}

	fmt.Printf("✓ Applied %s: %d created, %d updated\n", filename, created, updated)
	return nil
}

// applyReminder updates r when its ID exists and creates it otherwise
func applyReminder(ctx context.Context, store storage.Store, r *types.Reminder) (bool, error) {
	existing, err := store.Get(ctx, r.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return true, store.Create(ctx, r)
	case err != nil:
		return false, err
	}

	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now()
	return false, store.Update(ctx, r)
}

// decodeManifest parses a manifest into reminders ready to store
func decodeManifest(data []byte, now time.Time) ([]*types.Reminder, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %v", err)
	}

	if m.Kind != ManifestKind {
		return nil, fmt.Errorf("unsupported resource kind: %s", m.Kind)
	}
	if m.APIVersion != "" && m.APIVersion != ManifestAPIVersion {
		return nil, fmt.Errorf("unsupported apiVersion: %s", m.APIVersion)
	}

	reminders := make([]*types.Reminder, 0, len(m.Reminders))
	for i, e := range m.Reminders {
		var r *types.Reminder
		if e.TriggerDate.IsZero() {
			if e.Text == "" {
				return nil, fmt.Errorf("reminder %d: triggerDate or text is required", i)
			}
			r = extract.ToReminder(extract.ParseLocally(e.Text, now), e.Text, now)
			if e.Title != "" {
				r.Title = types.TruncateTitle(e.Title)
			}
			if e.Recurrence != nil {
				r.Recurrence = e.Recurrence
			}
		} else {
			r = types.NewReminder(e.Title, e.Notes, e.TriggerDate, e.Recurrence, now)
		}

		if e.ID != "" {
			r.ID = e.ID
		}
		if e.Notes != "" {
			r.Notes = e.Notes
		}
		if e.Status == types.ReminderStatusCompleted {
			r.Status = types.ReminderStatusCompleted
		}
		if e.SnoozedUntil != nil {
			t := *e.SnoozedUntil
			r.SnoozedUntil = &t
		}
		reminders = append(reminders, r)
	}
	return reminders, nil
}

// encodeManifest writes reminders as a manifest that apply accepts
func encodeManifest(w io.Writer, reminders []*types.Reminder) error {
	m := Manifest{
		APIVersion: ManifestAPIVersion,
		Kind:       ManifestKind,
		Reminders:  make([]ManifestEntry, 0, len(reminders)),
	}
	for _, r := range reminders {
		m.Reminders = append(m.Reminders, ManifestEntry{Reminder: *r})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return enc.Close()
}
