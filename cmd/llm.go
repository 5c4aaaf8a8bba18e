package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/bugboard/internal/llm"
	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/output"
)

var triageApply bool

var triageCmd = &cobra.Command{
	Use:   "triage <id>",
	Short: "Ask an LLM for a severity and tags",
	Long: `Ask an LLM to suggest a severity, tags and an assignee for a bug.

With --apply the suggestion is saved: severity is replaced, tags are
merged, and the assignee is set only if the bug is unassigned.

Requires ANTHROPIC_API_KEY or anthropic.api_key in config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return triageRun(cmd.Context(), args[0])
	},
}

func init() {
	triageCmd.Flags().BoolVar(&triageApply, "apply", false, "Save the suggestion to the bug")
	rootCmd.AddCommand(triageCmd)
}

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}

// knownTags collects every tag in use, sorted.
func knownTags(bugs []*models.Bug) []string {
	seen := map[string]bool{}
	for _, b := range bugs {
		for _, t := range b.Tags {
			seen[t] = true
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// applySuggestion returns the draft edit that saves s onto a bug.
func applySuggestion(s *llm.Suggestion) func(*models.Draft) {
	return func(d *models.Draft) {
		d.Severity = s.Severity
		for _, tag := range s.Tags {
			d.AddTag(tag)
		}
		if s.Assignee != "" && (d.Assignee == "" || d.Assignee == models.DefaultAssignee) {
			d.Assignee = s.Assignee
		}
	}
}

func triageRun(ctx context.Context, raw string) error {
	client := newLLMClient()
	if client == nil {
		return fmt.Errorf("triage needs an Anthropic API key (set ANTHROPIC_API_KEY or anthropic.api_key)")
	}
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	bug, err := findBug(t, raw)
	if err != nil {
		return err
	}

	s, err := client.Triage(ctx, bug, knownTags(t.Snapshot().Bugs))
	if err != nil {
		return fmt.Errorf("triage bug #%d: %w", bug.ID, err)
	}

	fmt.Fprintf(ui.Out, "Severity:  %s (was %s)\n", output.SeverityColor(s.Severity), bug.Severity)
	fmt.Fprintf(ui.Out, "Tags:      %s\n", strings.Join(s.Tags, ", "))
	if s.Assignee != "" {
		fmt.Fprintf(ui.Out, "Assignee:  %s\n", s.Assignee)
	}
	fmt.Fprintf(ui.Out, "Rationale: %s\n", s.Rationale)

	if !triageApply {
		return nil
	}
	t.OpenEditForm(bug)
	if _, err := t.UpdateDraft(applySuggestion(s)); err != nil {
		return err
	}
	_, err = submit(ctx, t, "update")
	return err
}
