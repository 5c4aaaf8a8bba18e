package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugboard/internal/models"
)

func TestBuildTriagePrompt(t *testing.T) {
	bug := &models.Bug{
		ID:          3,
		Title:       "Null pointer in report export",
		Description: "Exporting a report with no rows crashes the worker.",
		Severity:    models.SeverityMedium,
		Tags:        []string{"export"},
	}

	t.Run("with known tags", func(t *testing.T) {
		system, user := buildTriagePrompt(bug, []string{"auth", "export"})

		assert.Contains(t, system, `"severity"`)
		assert.Contains(t, system, `"critical"`)
		assert.Contains(t, system, `"low"`)
		assert.Contains(t, system, "no markdown fencing")

		assert.Contains(t, user, "Known tags: auth, export")
		assert.Contains(t, user, "Bug #3: Null pointer in report export")
		assert.Contains(t, user, "Current tags: export")
		assert.Contains(t, user, "crashes the worker")
	})

	t.Run("without known tags", func(t *testing.T) {
		_, user := buildTriagePrompt(&models.Bug{ID: 1, Title: "t"}, nil)
		assert.NotContains(t, user, "Known tags")
		assert.NotContains(t, user, "Current tags")
	})
}

func TestBuildExtractPrompt(t *testing.T) {
	system, user := buildExtractPrompt("- login button dead on Safari")
	assert.Contains(t, system, "JSON array")
	assert.Contains(t, system, `"title"`)
	assert.Contains(t, user, "login button dead on Safari")
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1]\n```\n", `[1]`},
		{"whitespace", "  \n[]\n ", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFence(tt.in))
		})
	}
}

func TestParseSuggestion(t *testing.T) {
	s, err := parseSuggestion("```json\n{\"severity\":\"High\",\"tags\":[\"export\",\" \",\"export\",\"crash\"],\"assignee\":\" Marco \",\"rationale\":\"Crashes a core flow.\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, models.SeverityHigh, s.Severity)
	assert.Equal(t, []string{"export", "crash"}, s.Tags)
	assert.Equal(t, "Marco", s.Assignee)
	assert.Equal(t, "Crashes a core flow.", s.Rationale)

	_, err = parseSuggestion(`{"severity":"urgent"}`)
	assert.Error(t, err)

	_, err = parseSuggestion("not json")
	assert.Error(t, err)
}

func TestParseExtracted(t *testing.T) {
	got, err := parseExtracted(`[
		{"title":"Login button dead","description":"Nothing happens on click","severity":"high","tags":["auth"]},
		{"title":"  ","description":"dropped"},
		{"title":"Slow search","severity":"whatever"}
	]`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ExtractedBug{Title: "Login button dead", Description: "Nothing happens on click", Severity: models.SeverityHigh, Tags: []string{"auth"}}, got[0])
	assert.Equal(t, models.SeverityMedium, got[1].Severity)
	assert.Equal(t, "Slow search", got[1].Description)
	assert.Empty(t, got[1].Tags)

	empty, err := parseExtracted("[]")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
