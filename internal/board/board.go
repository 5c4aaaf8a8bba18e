// Package board derives the filtered list and the status columns shown to
// the user from the canonical bug collection. Everything here is a pure
// function of its inputs.
package board

import (
	"strconv"
	"strings"

	"github.com/joescharf/bugboard/internal/models"
)

// Columns holds the filtered bugs partitioned by status, each in the order
// they appeared in the filtered sequence.
type Columns struct {
	Todo       []*models.Bug `json:"todo"`
	InProgress []*models.Bug `json:"in-progress"`
	Resolved   []*models.Bug `json:"resolved"`
}

// Column returns the bugs in the column for status s.
func (c Columns) Column(s models.Status) []*models.Bug {
	switch s {
	case models.StatusTodo:
		return c.Todo
	case models.StatusInProgress:
		return c.InProgress
	case models.StatusResolved:
		return c.Resolved
	}
	return nil
}

// Len returns the number of bugs across all columns.
func (c Columns) Len() int {
	return len(c.Todo) + len(c.InProgress) + len(c.Resolved)
}

// Stats summarizes the whole collection, ignoring filters.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Critical int `json:"critical"`
	Resolved int `json:"resolved"`
}

// Matches reports whether bug passes the text query. The query matches
// case-insensitively against title and description, and as plain text
// against the decimal id.
func Matches(bug *models.Bug, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(bug.Title), q) ||
		strings.Contains(strings.ToLower(bug.Description), q) ||
		strings.Contains(strconv.FormatInt(bug.ID, 10), q)
}

// Filter returns the bugs passing both the text query and the status
// filter, preserving input order.
func Filter(bugs []*models.Bug, query string, filter models.StatusFilter) []*models.Bug {
	out := make([]*models.Bug, 0, len(bugs))
	for _, b := range bugs {
		if filter.Matches(b.Status) && Matches(b, query) {
			out = append(out, b)
		}
	}
	return out
}

// Group partitions bugs by status. Bugs with an unknown status are left
// out of every column.
func Group(bugs []*models.Bug) Columns {
	var c Columns
	for _, b := range bugs {
		switch b.Status {
		case models.StatusTodo:
			c.Todo = append(c.Todo, b)
		case models.StatusInProgress:
			c.InProgress = append(c.InProgress, b)
		case models.StatusResolved:
			c.Resolved = append(c.Resolved, b)
		}
	}
	return c
}

// Summarize counts totals for the stats panel.
func Summarize(bugs []*models.Bug) Stats {
	s := Stats{Total: len(bugs)}
	for _, b := range bugs {
		if b.Status == models.StatusResolved {
			s.Resolved++
		} else {
			s.Active++
		}
		if b.Severity == models.SeverityCritical {
			s.Critical++
		}
	}
	return s
}
