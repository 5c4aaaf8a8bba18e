package tracker

import (
	"context"
	"errors"
	"sync"

	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/store"
)

var errBackend = errors.New("backend unavailable")

// fakeStore wraps a MemoryStore with per-method failure injection and call
// counting.
type fakeStore struct {
	*store.MemoryStore

	mu          sync.Mutex
	calls       map[string]int
	failList    error
	failComment error
	failCreate  error
	failUpdate  error
	failDelete  error
	// block, when set, is waited on before UpdateBug runs.
	block chan struct{}
}

func newFakeStore(seed *store.Seed) *fakeStore {
	return &fakeStore{
		MemoryStore: store.NewMemoryStore(store.WithSeed(seed)),
		calls:       map[string]int{},
	}
}

func (f *fakeStore) count(name string) (fail error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	switch name {
	case "ListBugs":
		return f.failList
	case "ListComments":
		return f.failComment
	case "CreateBug":
		return f.failCreate
	case "UpdateBug":
		return f.failUpdate
	case "DeleteBug":
		return f.failDelete
	}
	return nil
}

func (f *fakeStore) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) ListBugs(ctx context.Context) ([]*models.Bug, error) {
	if err := f.count("ListBugs"); err != nil {
		return nil, err
	}
	return f.MemoryStore.ListBugs(ctx)
}

func (f *fakeStore) ListComments(ctx context.Context) ([]*models.Comment, error) {
	if err := f.count("ListComments"); err != nil {
		return nil, err
	}
	return f.MemoryStore.ListComments(ctx)
}

func (f *fakeStore) CreateBug(ctx context.Context, in models.BugInput) (*models.Bug, error) {
	if err := f.count("CreateBug"); err != nil {
		return nil, err
	}
	return f.MemoryStore.CreateBug(ctx, in)
}

func (f *fakeStore) UpdateBug(ctx context.Context, id int64, patch models.BugPatch) (*models.Bug, error) {
	if err := f.count("UpdateBug"); err != nil {
		return nil, err
	}
	if f.block != nil {
		<-f.block
	}
	return f.MemoryStore.UpdateBug(ctx, id, patch)
}

func (f *fakeStore) DeleteBug(ctx context.Context, id int64) error {
	if err := f.count("DeleteBug"); err != nil {
		return err
	}
	return f.MemoryStore.DeleteBug(ctx, id)
}
