package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/bugboard/internal/llm"
	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/store"
	"github.com/joescharf/bugboard/internal/validation"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import bugs from a YAML seed file or from notes",
	Long: `Import bugs and comments from a YAML file with "bugs" and "comments"
lists (the same format as the built-in demo data). Bugs get fresh ids and
comments follow their bug.

A .md or .txt file is treated as free-form notes: an LLM extracts the bug
reports. This requires ANTHROPIC_API_KEY or anthropic.api_key in config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return importRun(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importRun(ctx context.Context, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("file is empty: %s", file)
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".md", ".markdown", ".txt":
		return importNotes(ctx, string(data))
	default:
		return importSeed(ctx, data)
	}
}

// checkSeedBug reports why b cannot be imported, or nil.
func checkSeedBug(b *models.Bug) error {
	if b.Severity != "" && !b.Severity.Valid() {
		return fmt.Errorf("invalid severity %q", b.Severity)
	}
	if b.Status != "" && !b.Status.Valid() {
		return fmt.Errorf("invalid status %q", b.Status)
	}
	if errs := validation.Validate(models.DraftFromBug(b)); !errs.OK() {
		return errs
	}
	return nil
}

func importSeed(ctx context.Context, data []byte) error {
	seed, err := store.ParseSeed(data)
	if err != nil {
		return err
	}

	valid := &store.Seed{Comments: seed.Comments}
	for i, b := range seed.Bugs {
		if err := checkSeedBug(b); err != nil {
			ui.Warning("Skipping bug %d (%q): %v", i+1, b.Title, err)
			continue
		}
		valid.Bugs = append(valid.Bugs, b)
	}
	if len(valid.Bugs) == 0 {
		return fmt.Errorf("no valid bugs to import")
	}

	if dryRun {
		for _, b := range valid.Bugs {
			ui.DryRunMsg("Would import bug: %s [%s]", b.Title, b.Severity)
		}
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	res, err := store.Import(ctx, s, valid)
	if err != nil {
		return err
	}
	for _, b := range res.Bugs {
		ui.VerboseLog("Imported #%d %s", b.ID, b.Title)
	}
	ui.Success("Imported %d bugs and %d comments", len(res.Bugs), res.Comments)
	if res.Orphans > 0 {
		ui.Warning("Skipped %d comments whose bug was not imported", res.Orphans)
	}
	return nil
}

func importNotes(ctx context.Context, notes string) error {
	client := newLLMClient()
	if client == nil {
		return fmt.Errorf("importing notes needs an Anthropic API key (set ANTHROPIC_API_KEY or anthropic.api_key)")
	}

	ui.Info("Extracting bugs from notes...")
	extracted, err := client.ExtractBugs(ctx, notes)
	if err != nil {
		return fmt.Errorf("extract bugs: %w", err)
	}
	if len(extracted) == 0 {
		ui.Info("No bugs found in notes.")
		return nil
	}
	return createExtracted(ctx, extracted)
}

// createExtracted logs each extracted bug through a tracker form so it is
// validated like any other new bug.
func createExtracted(ctx context.Context, extracted []llm.ExtractedBug) error {
	if dryRun {
		for _, e := range extracted {
			ui.DryRunMsg("Would log bug: %s [%s] tags=%v", e.Title, e.Severity, e.Tags)
		}
		return nil
	}

	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	created := 0
	for _, e := range extracted {
		t.OpenCreateForm()
		if _, err := t.UpdateDraft(func(d *models.Draft) {
			d.Title = e.Title
			d.Description = e.Description
			d.Severity = e.Severity
			for _, tag := range e.Tags {
				d.AddTag(tag)
			}
		}); err != nil {
			return err
		}
		if _, err := t.SubmitForm(ctx); err != nil {
			t.CloseForm()
			ui.Warning("Skipping %q: %v", e.Title, err)
			continue
		}
		created++
	}
	ui.Info("Logged %d of %d extracted bugs", created, len(extracted))
	return nil
}
