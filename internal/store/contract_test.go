package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugboard/internal/models"
)

func input(title, desc string) models.BugInput {
	return models.BugInput{
		Title:       title,
		Description: desc,
		Severity:    models.SeverityHigh,
		Tags:        []string{"a", "b"},
	}
}

func patchTitle(title string) models.BugPatch {
	return models.BugPatch{Title: &title}
}

// runContract exercises the behavior every Store backend must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("create applies defaults and timestamps", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b, err := s.CreateBug(ctx, models.BugInput{Title: "Null pointer", Description: "Crash on load", Severity: models.SeverityHigh})
		require.NoError(t, err)
		assert.NotZero(t, b.ID)
		assert.Equal(t, models.StatusTodo, b.Status)
		assert.Equal(t, models.DefaultReporter, b.Reporter)
		assert.Equal(t, models.DefaultAssignee, b.Assignee)
		assert.NotNil(t, b.Tags)
		assert.False(t, b.CreatedAt.IsZero())
		assert.True(t, b.CreatedAt.Equal(b.UpdatedAt))
	})

	t.Run("create then list round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.CreateBug(ctx, input("First", "one"))
		require.NoError(t, err)
		second, err := s.CreateBug(ctx, input("Second", "two"))
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID, "ids are monotonic")

		bugs, err := s.ListBugs(ctx)
		require.NoError(t, err)
		require.Len(t, bugs, 2)
		assert.Equal(t, second.ID, bugs[0].ID, "newest first")
		assert.Equal(t, first.ID, bugs[1].ID)
		assert.True(t, bugs[0].CreatedAt.Equal(bugs[0].UpdatedAt))
		assert.Equal(t, []string{"a", "b"}, bugs[0].Tags)
	})

	t.Run("update then list keeps createdAt", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.CreateBug(ctx, input("Before", "desc"))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)

		updated, err := s.UpdateBug(ctx, created.ID, models.StatusPatch(models.StatusResolved))
		require.NoError(t, err)
		assert.Equal(t, models.StatusResolved, updated.Status)
		assert.Equal(t, "Before", updated.Title, "unpatched fields survive")

		bugs, err := s.ListBugs(ctx)
		require.NoError(t, err)
		require.Len(t, bugs, 1)
		got := bugs[0]
		assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
		assert.True(t, got.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("update replaces tags", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.CreateBug(ctx, input("Tags", "desc"))
		require.NoError(t, err)

		updated, err := s.UpdateBug(ctx, created.ID, models.BugPatch{Tags: []string{"z"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"z"}, updated.Tags)

		got, err := s.GetBug(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"z"}, got.Tags)
	})

	t.Run("missing ids report not found", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetBug(ctx, 42)
		assert.True(t, errors.Is(err, ErrNotFound))

		_, err = s.UpdateBug(ctx, 42, models.StatusPatch(models.StatusResolved))
		assert.ErrorIs(t, err, ErrNotFound)

		err = s.DeleteBug(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)

		err = s.DeleteComment(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete removes bug but keeps comments", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b, err := s.CreateBug(ctx, input("Doomed", "desc"))
		require.NoError(t, err)
		c := &models.Comment{BugID: b.ID, Author: "QA", Content: "seen it"}
		require.NoError(t, s.CreateComment(ctx, c))
		assert.NotEmpty(t, c.ID)

		require.NoError(t, s.DeleteBug(ctx, b.ID))
		_, err = s.GetBug(ctx, b.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		orphans, err := s.ListCommentsByBug(ctx, b.ID)
		require.NoError(t, err)
		assert.Len(t, orphans, 1)
	})

	t.Run("comments filter by bug", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		require.NoError(t, s.CreateComment(ctx, &models.Comment{BugID: 1, Author: "a", Content: "one", CreatedAt: base}))
		require.NoError(t, s.CreateComment(ctx, &models.Comment{BugID: 2, Author: "b", Content: "two", CreatedAt: base.Add(time.Minute)}))
		require.NoError(t, s.CreateComment(ctx, &models.Comment{BugID: 1, Author: "c", Content: "three", CreatedAt: base.Add(2 * time.Minute)}))

		all, err := s.ListComments(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		mine, err := s.ListCommentsByBug(ctx, 1)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "one", mine[0].Content)
		assert.Equal(t, "three", mine[1].Content)

		none, err := s.ListCommentsByBug(ctx, 99)
		require.NoError(t, err)
		assert.Empty(t, none)

		require.NoError(t, s.DeleteComment(ctx, mine[0].ID))
		mine, err = s.ListCommentsByBug(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})

	t.Run("activities append", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.CreateActivity(ctx, &models.Activity{BugID: 1, Action: models.ActivityCreated, Detail: "x"}))
		require.NoError(t, s.CreateActivity(ctx, &models.Activity{BugID: 2, Action: models.ActivityDeleted}))

		all, err := s.ListActivities(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		mine, err := s.ListActivitiesByBug(ctx, 1)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, models.ActivityCreated, mine[0].Action)
		assert.NotEmpty(t, mine[0].ID)
	})

	t.Run("import remaps comment bug ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seed := &Seed{
			Bugs: []*models.Bug{
				{ID: 20, Title: "Newer", Description: "n", Severity: models.SeverityLow, Status: models.StatusTodo, Tags: []string{"x", " ", "x"}},
				{ID: 10, Title: "Older", Description: "o", Severity: models.SeverityHigh, Status: models.StatusResolved},
			},
			Comments: []*models.Comment{
				{BugID: 10, Author: "a", Content: "on older"},
				{BugID: 99, Author: "b", Content: "orphan"},
			},
		}
		res, err := Import(ctx, s, seed)
		require.NoError(t, err)
		require.Len(t, res.Bugs, 2)
		assert.Equal(t, 1, res.Comments)
		assert.Equal(t, 1, res.Orphans)
		assert.Equal(t, "Newer", res.Bugs[0].Title)
		assert.Equal(t, []string{"x"}, res.Bugs[0].Tags)

		bugs, err := s.ListBugs(ctx)
		require.NoError(t, err)
		require.Len(t, bugs, 2)
		assert.Equal(t, "Newer", bugs[0].Title, "file order is preserved newest first")

		older := res.Bugs[1]
		comments, err := s.ListCommentsByBug(ctx, older.ID)
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, "on older", comments[0].Content)
	})
}
