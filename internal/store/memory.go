package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joescharf/bugboard/internal/models"
)

// MemoryStore implements Store in process memory. It can simulate the
// latency of a remote backend, which makes the tracker's loading phase
// observable from the CLI and API.
type MemoryStore struct {
	mu         sync.RWMutex
	bugs       []*models.Bug // newest first
	comments   []*models.Comment
	activities []*models.Activity
	lastID     int64
	latency    time.Duration
	now        func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithLatency delays every call by d, or until the context is done.
func WithLatency(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.latency = d }
}

// WithSeed preloads bugs and comments. Bugs keep their ids; the id counter
// continues after the highest one.
func WithSeed(seed *Seed) MemoryOption {
	return func(m *MemoryStore) {
		if seed == nil {
			return
		}
		for _, b := range seed.Bugs {
			c := b.Clone()
			if c.Tags == nil {
				c.Tags = []string{}
			}
			m.bugs = append(m.bugs, c)
			if c.ID > m.lastID {
				m.lastID = c.ID
			}
		}
		for _, c := range seed.Comments {
			cc := *c
			if cc.ID == "" {
				cc.ID = newULID()
			}
			m.comments = append(m.comments, &cc)
		}
	}
}

// withClock overrides the time source; used by tests.
func withClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *MemoryStore) indexOf(id int64) int {
	for i, b := range m.bugs {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Migrate is a no-op for the in-memory backend.
func (m *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (m *MemoryStore) Close() error { return nil }

// --- Bugs ---

func (m *MemoryStore) ListBugs(ctx context.Context) ([]*models.Bug, error) {
	if err := m.wait(ctx); err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Bug, len(m.bugs))
	for i, b := range m.bugs {
		out[i] = b.Clone()
	}
	return out, nil
}

func (m *MemoryStore) GetBug(ctx context.Context, id int64) (*models.Bug, error) {
	if err := m.wait(ctx); err != nil {
		return nil, fmt.Errorf("get bug: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("bug %d: %w", id, ErrNotFound)
	}
	return m.bugs[i].Clone(), nil
}

func (m *MemoryStore) CreateBug(ctx context.Context, in models.BugInput) (*models.Bug, error) {
	if err := m.wait(ctx); err != nil {
		return nil, fmt.Errorf("create bug: %w", err)
	}
	in = in.WithDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastID++
	now := m.now()
	b := &models.Bug{
		ID:          m.lastID,
		Title:       in.Title,
		Description: in.Description,
		Severity:    in.Severity,
		Status:      in.Status,
		Reporter:    in.Reporter,
		Assignee:    in.Assignee,
		Tags:        append([]string{}, in.Tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.bugs = append([]*models.Bug{b}, m.bugs...)
	return b.Clone(), nil
}

func (m *MemoryStore) UpdateBug(ctx context.Context, id int64, patch models.BugPatch) (*models.Bug, error) {
	if err := m.wait(ctx); err != nil {
		return nil, fmt.Errorf("update bug: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("bug %d: %w", id, ErrNotFound)
	}
	b := m.bugs[i].Clone()
	patch.Apply(b, m.now())
	m.bugs[i] = b
	return b.Clone(), nil
}

func (m *MemoryStore) DeleteBug(ctx context.Context, id int64) error {
	if err := m.wait(ctx); err != nil {
		return fmt.Errorf("delete bug: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("bug %d: %w", id, ErrNotFound)
	}
	m.bugs = append(m.bugs[:i:i], m.bugs[i+1:]...)
	return nil
}

// --- Comments ---

func (m *MemoryStore) ListComments(ctx context.Context) ([]*models.Comment, error) {
	if err := m.wait(ctx); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Comment, len(m.comments))
	for i, c := range m.comments {
		cc := *c
		out[i] = &cc
	}
	return out, nil
}

func (m *MemoryStore) ListCommentsByBug(ctx context.Context, bugID int64) ([]*models.Comment, error) {
	all, err := m.ListComments(ctx)
	if err != nil {
		return nil, err
	}
	out := models.CommentsFor(all, bugID)
	if out == nil {
		out = []*models.Comment{}
	}
	return out, nil
}

func (m *MemoryStore) CreateComment(ctx context.Context, c *models.Comment) error {
	if err := m.wait(ctx); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = newULID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	cc := *c
	m.comments = append(m.comments, &cc)
	return nil
}

func (m *MemoryStore) DeleteComment(ctx context.Context, id string) error {
	if err := m.wait(ctx); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.comments {
		if c.ID == id {
			m.comments = append(m.comments[:i:i], m.comments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("comment %s: %w", id, ErrNotFound)
}

// --- Activities ---

func (m *MemoryStore) ListActivities(ctx context.Context) ([]*models.Activity, error) {
	if err := m.wait(ctx); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Activity, len(m.activities))
	for i, a := range m.activities {
		aa := *a
		out[i] = &aa
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) ListActivitiesByBug(ctx context.Context, bugID int64) ([]*models.Activity, error) {
	all, err := m.ListActivities(ctx)
	if err != nil {
		return nil, err
	}
	out := []*models.Activity{}
	for _, a := range all {
		if a.BugID == bugID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateActivity(ctx context.Context, a *models.Activity) error {
	if err := m.wait(ctx); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = newULID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = m.now()
	}
	aa := *a
	m.activities = append(m.activities, &aa)
	return nil
}
