package board

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/joescharf/bugboard/internal/models"
)

func sampleBugs() []*models.Bug {
	return []*models.Bug{
		{ID: 12, Title: "Crash on load", Description: "App dies at splash", Status: models.StatusTodo, Severity: models.SeverityCritical},
		{ID: 2, Title: "UI glitch", Description: "Button misaligned", Status: models.StatusInProgress, Severity: models.SeverityLow},
		{ID: 31, Title: "Slow search", Description: "Query takes 3s then CRASHES", Status: models.StatusResolved, Severity: models.SeverityHigh},
		{ID: 4, Title: "Typo in footer", Description: "copyright", Status: models.StatusTodo, Severity: models.SeverityLow},
	}
}

func ids(bugs []*models.Bug) []int64 {
	out := make([]int64, len(bugs))
	for i, b := range bugs {
		out[i] = b.ID
	}
	return out
}

func TestFilter_SearchScenario(t *testing.T) {
	bugs := []*models.Bug{
		{ID: 1, Title: "Crash on load", Status: models.StatusTodo},
		{ID: 2, Title: "UI glitch", Status: models.StatusTodo},
	}
	got := Filter(bugs, "crash", models.FilterAll)
	if diff := cmp.Diff([]int64{1}, ids(got)); diff != "" {
		t.Errorf("filtered ids mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		filter models.StatusFilter
		want   []int64
	}{
		{"empty query all", "", models.FilterAll, []int64{12, 2, 31, 4}},
		{"title case-insensitive", "CRASH", models.FilterAll, []int64{12, 31}},
		{"description", "misaligned", models.FilterAll, []int64{2}},
		{"id substring", "1", models.FilterAll, []int64{12, 31}},
		{"id exact text", "31", models.FilterAll, []int64{31}},
		{"status only", "", models.StatusFilter(models.StatusTodo), []int64{12, 4}},
		{"query and status", "crash", models.StatusFilter(models.StatusResolved), []int64{31}},
		{"no match", "zzz", models.FilterAll, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(sampleBugs(), tt.query, tt.filter)
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("filtered ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_SubsetAndIdempotent(t *testing.T) {
	bugs := sampleBugs()
	all := make(map[*models.Bug]bool)
	for _, b := range bugs {
		all[b] = true
	}

	queries := []string{"", "a", "crash", "1", "Typo", "xyz"}
	for _, q := range queries {
		for _, f := range []models.StatusFilter{models.FilterAll, "todo", "in-progress", "resolved"} {
			once := Filter(bugs, q, f)
			for _, b := range once {
				assert.True(t, all[b], "filtered bug must come from input")
				assert.True(t, Matches(b, q))
				assert.True(t, f.Matches(b.Status))
			}
			twice := Filter(once, q, f)
			assert.Equal(t, ids(once), ids(twice), "query=%q filter=%q", q, f)
		}
	}
}

func TestGroup_IsPartition(t *testing.T) {
	filtered := Filter(sampleBugs(), "", models.FilterAll)
	cols := Group(filtered)

	assert.Equal(t, []int64{12, 4}, ids(cols.Todo))
	assert.Equal(t, []int64{2}, ids(cols.InProgress))
	assert.Equal(t, []int64{31}, ids(cols.Resolved))
	assert.Equal(t, len(filtered), cols.Len())

	seen := make(map[int64]int)
	for _, s := range models.Statuses {
		for _, b := range cols.Column(s) {
			seen[b.ID]++
			assert.Equal(t, s, b.Status)
		}
	}
	for _, b := range filtered {
		assert.Equal(t, 1, seen[b.ID], "bug %d must land in exactly one column", b.ID)
	}
}

func TestGroup_Empty(t *testing.T) {
	cols := Group(nil)
	assert.Equal(t, 0, cols.Len())
	assert.Nil(t, cols.Column("bogus"))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleBugs())
	assert.Equal(t, Stats{Total: 4, Active: 3, Critical: 1, Resolved: 1}, s)
	assert.Equal(t, Stats{}, Summarize(nil))
}
