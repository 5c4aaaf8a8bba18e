package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/bugboard/internal/board"
	"github.com/joescharf/bugboard/internal/models"
)

// StatusColor colors a bug status.
func StatusColor(status models.Status) string {
	s := string(status)
	switch status {
	case models.StatusTodo:
		return cyan(s)
	case models.StatusInProgress:
		return yellow(s)
	case models.StatusResolved:
		return green(s)
	default:
		return s
	}
}

// SeverityColor colors a bug severity.
func SeverityColor(sev models.Severity) string {
	s := string(sev)
	switch sev {
	case models.SeverityCritical:
		return magenta(s)
	case models.SeverityHigh:
		return red(s)
	case models.SeverityMedium:
		return yellow(s)
	case models.SeverityLow:
		return faint(s)
	default:
		return s
	}
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// BugTable prints bugs as a list.
func (u *UI) BugTable(bugs []*models.Bug) error {
	table := u.Table([]string{"ID", "Title", "Severity", "Status", "Assignee", "Tags"})
	for _, b := range bugs {
		if err := table.Append([]string{
			fmt.Sprintf("#%d", b.ID),
			Truncate(b.Title, 48),
			SeverityColor(b.Severity),
			StatusColor(b.Status),
			b.Assignee,
			strings.Join(b.Tags, ", "),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Board prints the three status columns side by side.
func (u *UI) Board(cols board.Columns) error {
	headers := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		headers[i] = fmt.Sprintf("%s (%d)", strings.ToUpper(string(s)), len(cols.Column(s)))
	}
	table := u.Table(headers)

	rows := 0
	for _, s := range models.Statuses {
		rows = max(rows, len(cols.Column(s)))
	}
	for i := range rows {
		row := make([]string, len(models.Statuses))
		for j, s := range models.Statuses {
			col := cols.Column(s)
			if i < len(col) {
				row[j] = fmt.Sprintf("#%d %s [%s]", col[i].ID, Truncate(col[i].Title, 28), SeverityColor(col[i].Severity))
			}
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// Stats prints the summary counters on one line.
func (u *UI) Stats(s board.Stats) {
	fmt.Fprintf(u.Out, "%s %d   %s %d   %s %d   %s %d\n",
		bold("Total"), s.Total,
		bold("Active"), s.Active,
		bold("Critical"), s.Critical,
		bold("Resolved"), s.Resolved,
	)
}

// BugDetail prints every field of a bug followed by its comments.
func (u *UI) BugDetail(b *models.Bug, comments []*models.Comment) {
	fmt.Fprintf(u.Out, "%s %s\n", bold(fmt.Sprintf("#%d", b.ID)), bold(b.Title))
	fmt.Fprintf(u.Out, "  Severity:  %s\n", SeverityColor(b.Severity))
	fmt.Fprintf(u.Out, "  Status:    %s\n", StatusColor(b.Status))
	fmt.Fprintf(u.Out, "  Reporter:  %s\n", b.Reporter)
	fmt.Fprintf(u.Out, "  Assignee:  %s\n", b.Assignee)
	if len(b.Tags) > 0 {
		fmt.Fprintf(u.Out, "  Tags:      %s\n", strings.Join(b.Tags, ", "))
	}
	fmt.Fprintf(u.Out, "  Created:   %s\n", b.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(u.Out, "  Updated:   %s\n", b.UpdatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(u.Out, "\n%s\n", b.Description)

	if len(comments) == 0 {
		return
	}
	fmt.Fprintf(u.Out, "\n%s\n", bold(fmt.Sprintf("Comments (%d)", len(comments))))
	for _, c := range comments {
		fmt.Fprintf(u.Out, "  %s %s\n    %s\n", cyan(c.Author), faint(c.CreatedAt.Local().Format(time.DateTime)), c.Content)
	}
}
