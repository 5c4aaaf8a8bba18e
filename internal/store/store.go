package store

import (
	"context"
	"errors"

	"github.com/joescharf/bugboard/internal/models"
)

// ErrNotFound is wrapped by every lookup, update or delete whose id has no
// matching record. Check with errors.Is.
var ErrNotFound = errors.New("not found")

// BugStore is the canonical bug collection.
type BugStore interface {
	// ListBugs returns every bug, newest first.
	ListBugs(ctx context.Context) ([]*models.Bug, error)
	GetBug(ctx context.Context, id int64) (*models.Bug, error)
	// CreateBug assigns the id and both timestamps and returns the stored record.
	CreateBug(ctx context.Context, in models.BugInput) (*models.Bug, error)
	// UpdateBug applies the patch, stamps UpdatedAt and returns the full record.
	UpdateBug(ctx context.Context, id int64, patch models.BugPatch) (*models.Bug, error)
	DeleteBug(ctx context.Context, id int64) error
}

// CommentStore holds discussion comments. Deleting a bug leaves its
// comments in place.
type CommentStore interface {
	// ListComments returns every comment, oldest first.
	ListComments(ctx context.Context) ([]*models.Comment, error)
	ListCommentsByBug(ctx context.Context, bugID int64) ([]*models.Comment, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, id string) error
}

// ActivityStore is the append-only audit trail of bug mutations.
type ActivityStore interface {
	ListActivities(ctx context.Context) ([]*models.Activity, error)
	ListActivitiesByBug(ctx context.Context, bugID int64) ([]*models.Activity, error)
	CreateActivity(ctx context.Context, a *models.Activity) error
}

// Store bundles every collection behind one backend.
type Store interface {
	BugStore
	CommentStore
	ActivityStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
