package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/output"
	"github.com/joescharf/bugboard/internal/store"
	"github.com/joescharf/bugboard/internal/tracker"
	"github.com/joescharf/bugboard/internal/validation"
)

// bugFlags holds the field flags shared by bug add and bug edit.
type bugFlags struct {
	title       string
	description string
	severity    string
	status      string
	reporter    string
	assignee    string
	tags        []string
}

var (
	addFlags  bugFlags
	editFlags bugFlags

	listQuery  string
	listStatus string
)

var bugCmd = &cobra.Command{
	Use:     "bug",
	Aliases: []string{"bugs"},
	Short:   "Log, edit and move bugs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugListRun(cmd.Context(), "", "")
	},
}

var bugAddCmd = &cobra.Command{
	Use:   "add [title...]",
	Short: "Log a new bug",
	Long: `Log a new bug. The title comes from --title or the remaining arguments.

Use --severity auto to guess the severity from the title and description.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addFlags.title == "" {
			addFlags.title = strings.Join(args, " ")
		}
		return bugAddRun(cmd.Context(), addFlags)
	},
}

var bugListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List bugs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugListRun(cmd.Context(), listQuery, listStatus)
	},
}

var bugShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a bug with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugShowRun(cmd.Context(), args[0])
	},
}

var bugEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit bug fields",
	Long:  "Edit bug fields. Only the flags you pass are changed; --tag replaces the whole tag set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugEditRun(cmd.Context(), args[0], editFlags, cmd.Flags().Changed)
	},
}

var bugDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a bug (its comments are kept)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugDeleteRun(cmd.Context(), args[0])
	},
}

var bugStatusCmd = &cobra.Command{
	Use:   "status <id> <todo|in-progress|resolved>",
	Short: "Change a bug's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugStatusRun(cmd.Context(), args[0], args[1])
	},
}

var bugMoveCmd = &cobra.Command{
	Use:   "move <id> <column>",
	Short: "Drag a bug onto a board column",
	Long:  "Drag a bug onto a board column. Dropping on the column it is already in does nothing.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugMoveRun(cmd.Context(), args[0], args[1])
	},
}

var bugTagCmd = &cobra.Command{
	Use:   "tag <id> <add|rm> <tag>...",
	Short: "Add or remove bug tags",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugTagRun(cmd.Context(), args[0], args[1], args[2:])
	},
}

var bugHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the activity log of a bug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugHistoryRun(cmd.Context(), args[0])
	},
}

func registerBugFlags(cmd *cobra.Command, f *bugFlags, severityDefault string) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Bug title")
	cmd.Flags().StringVarP(&f.description, "desc", "d", "", "What happens and how to reproduce it")
	cmd.Flags().StringVarP(&f.severity, "severity", "s", severityDefault, "Severity: low, medium, high, critical, or auto")
	cmd.Flags().StringVar(&f.status, "status", "", "Status: todo, in-progress, resolved")
	cmd.Flags().StringVar(&f.reporter, "reporter", "", "Reporter (default from defaults.reporter)")
	cmd.Flags().StringVar(&f.assignee, "assignee", "", "Assignee (default from defaults.assignee)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Tag to apply (repeatable or comma-separated)")
}

func init() {
	registerBugFlags(bugAddCmd, &addFlags, "medium")
	registerBugFlags(bugEditCmd, &editFlags, "")

	bugListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search title, description and id")
	bugListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status: all, todo, in-progress, resolved")

	bugCmd.AddCommand(bugAddCmd)
	bugCmd.AddCommand(bugListCmd)
	bugCmd.AddCommand(bugShowCmd)
	bugCmd.AddCommand(bugEditCmd)
	bugCmd.AddCommand(bugDeleteCmd)
	bugCmd.AddCommand(bugStatusCmd)
	bugCmd.AddCommand(bugMoveCmd)
	bugCmd.AddCommand(bugTagCmd)
	bugCmd.AddCommand(bugHistoryCmd)
	rootCmd.AddCommand(bugCmd)
}

// parseBugID accepts "7" or "#7".
func parseBugID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid bug id %q", raw)
	}
	return id, nil
}

// findBug resolves a bug argument against the session.
func findBug(t *tracker.Tracker, raw string) (*models.Bug, error) {
	id, err := parseBugID(raw)
	if err != nil {
		return nil, err
	}
	bug, ok := t.Snapshot().Bug(id)
	if !ok {
		return nil, fmt.Errorf("bug #%d: %w", id, store.ErrNotFound)
	}
	return bug, nil
}

// edit turns the flags for which changed reports true into a draft edit.
func (f bugFlags) edit(changed func(string) bool) (func(*models.Draft), error) {
	var (
		sev    models.Severity
		status models.Status
		err    error
	)
	if changed("severity") && f.severity != "auto" {
		if sev, err = models.ParseSeverity(f.severity); err != nil {
			return nil, err
		}
	}
	if changed("status") {
		if status, err = models.ParseStatus(f.status); err != nil {
			return nil, err
		}
	}
	return func(d *models.Draft) {
		if changed("title") {
			d.Title = f.title
		}
		if changed("desc") {
			d.Description = f.description
		}
		if changed("severity") {
			if f.severity == "auto" {
				d.Severity = classifySeverity(d.Title, d.Description)
			} else {
				d.Severity = sev
			}
		}
		if changed("status") {
			d.Status = status
		}
		if changed("reporter") {
			d.Reporter = f.reporter
		}
		if changed("assignee") {
			d.Assignee = f.assignee
		}
		if changed("tag") {
			d.Tags = []string{}
			for _, tag := range f.tags {
				d.AddTag(tag)
			}
		}
	}, nil
}

// submit validates the open draft and, unless this is a dry run, submits
// it. Field errors are printed one per line.
func submit(ctx context.Context, t *tracker.Tracker, verb string) (*models.Bug, error) {
	st := t.Snapshot()
	if st.Form == nil {
		return nil, tracker.ErrNoForm
	}
	d := st.Form.Draft
	if dryRun {
		if errs := validation.Validate(d); !errs.OK() {
			return nil, fmt.Errorf("%w: %w", tracker.ErrInvalidDraft, errs)
		}
		ui.DryRunMsg("Would %s bug: %s [%s/%s] tags=%v", verb, d.Title, d.Severity, d.Status, d.Tags)
		return nil, nil
	}

	bug, err := t.SubmitForm(ctx)
	var fields validation.Errors
	if errors.As(err, &fields) {
		for _, field := range []string{validation.FieldTitle, validation.FieldDescription} {
			if code, ok := fields[field]; ok {
				ui.Error("%s: %s", field, code)
			}
		}
	}
	return bug, err
}

// everyFlag reports every flag as changed, so all add flags apply.
func everyFlag(string) bool { return true }

func bugAddRun(ctx context.Context, f bugFlags) error {
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}

	if f.reporter == "" {
		f.reporter = viper.GetString("defaults.reporter")
	}
	if f.assignee == "" {
		f.assignee = viper.GetString("defaults.assignee")
	}
	if f.status == "" {
		f.status = string(models.StatusTodo)
	}
	edit, err := f.edit(everyFlag)
	if err != nil {
		return err
	}

	t.OpenCreateForm()
	if _, err := t.UpdateDraft(edit); err != nil {
		return err
	}

	bug, err := submit(ctx, t, "log")
	if err != nil || bug == nil {
		return err
	}
	ui.VerboseLog("Severity %s, status %s, assignee %s", bug.Severity, bug.Status, bug.Assignee)
	return nil
}

func bugListRun(ctx context.Context, query, status string) error {
	filter, err := models.ParseStatusFilter(status)
	if err != nil {
		return err
	}
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	t.SetQuery(query)
	t.SetStatusFilter(filter)

	v := t.View()
	if v.Empty() {
		ui.Info("No bugs found.")
		return nil
	}
	return ui.BugTable(v.Filtered)
}

func bugShowRun(ctx context.Context, raw string) error {
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	bug, err := findBug(t, raw)
	if err != nil {
		return err
	}
	t.SelectBug(bug.ID)
	v := t.View()
	ui.BugDetail(v.Selected, v.SelectedComments)
	return nil
}

func bugEditRun(ctx context.Context, raw string, f bugFlags, changed func(string) bool) error {
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	bug, err := findBug(t, raw)
	if err != nil {
		return err
	}
	edit, err := f.edit(changed)
	if err != nil {
		return err
	}

	t.OpenEditForm(bug)
	if _, err := t.UpdateDraft(edit); err != nil {
		return err
	}
	_, err = submit(ctx, t, "update")
	return err
}

func bugDeleteRun(ctx context.Context, raw string) error {
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	bug, err := findBug(t, raw)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete bug #%d: %s", bug.ID, bug.Title)
		return nil
	}
	t.OpenEditForm(bug)
	return t.DeleteFormBug(ctx)
}

func bugStatusRun(ctx context.Context, raw, rawStatus string) error {
	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return err
	}
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	bug, err := findBug(t, raw)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would move bug #%d from %s to %s", bug.ID, bug.Status, status)
		return nil
	}
	_, err = t.ChangeStatus(ctx, bug.ID, status)
	return err
}

func bugMoveRun(ctx context.Context, raw, column string) error {
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	bug, err := findBug(t, raw)
	if err != nil {
		return err
	}
	// An unknown column is a drop outside the board: the drag just ends.
	target, _ := models.ParseStatus(column)
	if dryRun {
		ui.DryRunMsg("Would drop bug #%d on %s", bug.ID, column)
		return nil
	}

	t.DragStart(bug)
	moved, err := t.DropOn(ctx, target)
	if err != nil {
		return err
	}
	if moved == nil {
		ui.Info("Bug #%d stays in %s", bug.ID, output.StatusColor(bug.Status))
	}
	return nil
}

func bugTagRun(ctx context.Context, raw, op string, tags []string) error {
	if op != "add" && op != "rm" {
		return fmt.Errorf("unknown tag operation %q (want add, rm)", op)
	}
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	bug, err := findBug(t, raw)
	if err != nil {
		return err
	}

	t.OpenEditForm(bug)
	for _, tag := range tags {
		if op == "add" {
			t.AddTag(tag)
		} else {
			t.RemoveTag(tag)
		}
	}
	_, err = submit(ctx, t, "update")
	return err
}

func bugHistoryRun(ctx context.Context, raw string) error {
	id, err := parseBugID(raw)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	acts, err := s.ListActivitiesByBug(ctx, id)
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}
	if len(acts) == 0 {
		ui.Info("No activity recorded for bug #%d.", id)
		return nil
	}

	table := ui.Table([]string{"When", "Action", "Detail"})
	for _, a := range acts {
		_ = table.Append([]string{
			a.Timestamp.Local().Format("2006-01-02 15:04:05"),
			string(a.Action),
			a.Detail,
		})
	}
	return table.Render()
}
