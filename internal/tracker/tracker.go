// Package tracker is the bug tracking orchestrator. It owns the session
// state, runs validation and filtering, and drives the repository calls
// behind every user intent.
//
// State changes are expressed as pure transitions over an immutable State
// snapshot. Tracker applies a transition under its lock; repository calls
// always run outside the lock and their results are merged when they
// settle, so two calls on the same bug resolve in completion order.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/bugboard/internal/board"
	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/store"
	"github.com/joescharf/bugboard/internal/validation"
)

var (
	// ErrNoForm is returned when an intent needs an open form session.
	ErrNoForm = errors.New("no form is open")
	// ErrInvalidDraft wraps validation.Errors when a submit is rejected.
	ErrInvalidDraft = errors.New("invalid bug draft")
	// ErrBusy is returned when the same operation is still in flight.
	ErrBusy = errors.New("operation already in progress")
)

// Tracker drives one bug tracking session.
type Tracker struct {
	mu       sync.Mutex
	state    State
	inflight map[string]bool

	bugs     store.BugStore
	comments store.CommentStore
	activity store.ActivityStore
	notifier Notifier
	logger   *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNotifier sets where user-facing notices go.
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithActivityLog records an audit entry after every successful mutation.
func WithActivityLog(a store.ActivityStore) Option {
	return func(t *Tracker) { t.activity = a }
}

// New creates a Tracker over the given repositories. Call LoadAll to fill
// the session.
func New(bugs store.BugStore, comments store.CommentStore, opts ...Option) *Tracker {
	t := &Tracker{
		state:    initialState(),
		inflight: make(map[string]bool),
		bugs:     bugs,
		comments: comments,
		notifier: discardNotifier{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Snapshot returns the current state. Treat it as read-only.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) apply(tr transition) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = tr(t.state)
	return t.state
}

// begin claims the in-flight slot for key.
func (t *Tracker) begin(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inflight[key] {
		return false
	}
	t.inflight[key] = true
	return true
}

func (t *Tracker) end(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, key)
}

func (t *Tracker) success(format string, a ...any) {
	t.notifier.Notify(Notice{Level: NoticeSuccess, Message: fmt.Sprintf(format, a...)})
}

func (t *Tracker) failure(format string, a ...any) {
	t.notifier.Notify(Notice{Level: NoticeError, Message: fmt.Sprintf(format, a...)})
}

// record writes an audit entry. Failures are logged and otherwise ignored.
func (t *Tracker) record(ctx context.Context, bugID int64, action models.ActivityAction, detail string) {
	if t.activity == nil {
		return
	}
	a := &models.Activity{BugID: bugID, Action: action, Detail: detail}
	if err := t.activity.CreateActivity(ctx, a); err != nil {
		t.logger.Warn("record activity", "bug_id", bugID, "action", action, "error", err)
	}
}

// --- loading ---

// LoadAll fetches bugs and comments concurrently and replaces the session
// collections wholesale. A comment failure is logged and leaves the
// previous comments in place. A bug failure moves the session into the
// error phase; calling LoadAll again retries.
func (t *Tracker) LoadAll(ctx context.Context) error {
	if !t.begin("load") {
		return ErrBusy
	}
	defer t.end("load")

	t.apply(loadStarted())

	var (
		bugs        []*models.Bug
		comments    []*models.Comment
		commentsErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		bugs, err = t.bugs.ListBugs(ctx)
		return err
	})
	g.Go(func() error {
		comments, commentsErr = t.comments.ListComments(ctx)
		return nil
	})
	err := g.Wait()

	if commentsErr != nil {
		t.logger.Warn("load comments", "error", commentsErr)
	} else {
		t.apply(commentsLoaded(comments))
	}

	if err != nil {
		t.logger.Error("load bugs", "error", err)
		t.apply(bugsLoadFailed(fmt.Sprintf("failed to load bugs: %v", err)))
		t.failure("Failed to load bug data")
		return fmt.Errorf("load bugs: %w", err)
	}

	t.apply(bugsLoaded(bugs))
	t.logger.Debug("session loaded", "bugs", len(bugs), "comments", len(comments))
	return nil
}

// --- form session ---

// OpenCreateForm starts a create session with a default draft.
func (t *Tracker) OpenCreateForm() State {
	return t.apply(openCreateForm())
}

// OpenEditForm starts an edit session seeded from bug, and selects it.
func (t *Tracker) OpenEditForm(bug *models.Bug) State {
	if bug == nil {
		return t.Snapshot()
	}
	return t.apply(openEditForm(bug))
}

// CloseForm abandons the form session.
func (t *Tracker) CloseForm() State {
	return t.apply(closeForm())
}

// UpdateDraft applies fn to the open draft. It returns ErrNoForm when no
// form is open.
func (t *Tracker) UpdateDraft(fn func(*models.Draft)) (State, error) {
	s := t.Snapshot()
	if s.Form == nil {
		return s, ErrNoForm
	}
	return t.apply(editDraft(fn)), nil
}

// AddTag adds a trimmed tag to the open draft, ignoring blanks and exact
// duplicates.
func (t *Tracker) AddTag(raw string) State {
	return t.apply(addTag(raw))
}

// RemoveTag removes an exact tag from the open draft.
func (t *Tracker) RemoveTag(tag string) State {
	return t.apply(removeTag(tag))
}

// SubmitForm validates the open draft and, when it is clean, creates or
// updates the bug. Validation errors are stored on the form and returned
// wrapped in ErrInvalidDraft without any repository call. A repository
// failure leaves the form open so the user can retry.
func (t *Tracker) SubmitForm(ctx context.Context) (*models.Bug, error) {
	s := t.Snapshot()
	if s.Form == nil {
		return nil, ErrNoForm
	}
	form := *s.Form
	draft := form.Draft.Clone()

	if errs := validation.Validate(draft); !errs.OK() {
		t.apply(formRejected(errs))
		return nil, fmt.Errorf("%w: %w", ErrInvalidDraft, errs)
	}
	t.apply(formRejected(validation.Errors{}))

	if !t.begin("submit") {
		return nil, ErrBusy
	}
	defer t.end("submit")

	var (
		bug *models.Bug
		err error
	)
	if form.Editing {
		bug, err = t.bugs.UpdateBug(ctx, draft.ID, draft.Patch())
	} else {
		bug, err = t.bugs.CreateBug(ctx, draft.Input())
	}
	if err != nil {
		verb := "log"
		if form.Editing {
			verb = "update"
		}
		t.logger.Error("submit bug", "editing", form.Editing, "bug_id", draft.ID, "error", err)
		t.failure("Failed to %s bug", verb)
		return nil, fmt.Errorf("submit bug: %w", err)
	}

	t.apply(formSubmitted(bug, form.Editing, form.Session))
	if form.Editing {
		t.record(ctx, bug.ID, models.ActivityUpdated, bug.Title)
		t.success("Bug #%d updated", bug.ID)
	} else {
		t.record(ctx, bug.ID, models.ActivityCreated, bug.Title)
		t.success("Bug #%d logged", bug.ID)
	}
	return bug, nil
}

// --- mutations ---

// DeleteBug deletes bug id. An id of zero is a no-op. On success the bug
// leaves the session, the selection is cleared and the form is closed; on
// failure nothing changes.
func (t *Tracker) DeleteBug(ctx context.Context, id int64) error {
	if id == 0 {
		return nil
	}
	key := fmt.Sprintf("delete:%d", id)
	if !t.begin(key) {
		return ErrBusy
	}
	defer t.end(key)

	if err := t.bugs.DeleteBug(ctx, id); err != nil {
		t.logger.Error("delete bug", "bug_id", id, "error", err)
		t.failure("Failed to delete bug #%d", id)
		return fmt.Errorf("delete bug: %w", err)
	}

	t.apply(bugDeleted(id))
	t.record(ctx, id, models.ActivityDeleted, "")
	t.success("Bug #%d deleted", id)
	return nil
}

// DeleteFormBug deletes the bug being edited in the open form. It is a
// no-op when no form is open or the form is a create session.
func (t *Tracker) DeleteFormBug(ctx context.Context) error {
	s := t.Snapshot()
	if s.Form == nil {
		return nil
	}
	return t.DeleteBug(ctx, s.Form.Draft.ID)
}

// ChangeStatus moves bug id to status. The returned record replaces the
// cached one; a selected bug is refreshed along with it.
func (t *Tracker) ChangeStatus(ctx context.Context, id int64, status models.Status) (*models.Bug, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("change status: invalid status %q", status)
	}
	key := fmt.Sprintf("status:%d", id)
	if !t.begin(key) {
		return nil, ErrBusy
	}
	defer t.end(key)

	bug, err := t.bugs.UpdateBug(ctx, id, models.StatusPatch(status))
	if err != nil {
		t.logger.Error("change status", "bug_id", id, "status", status, "error", err)
		t.failure("Failed to update status of bug #%d", id)
		return nil, fmt.Errorf("change status: %w", err)
	}

	t.apply(statusChanged(bug))
	t.record(ctx, bug.ID, models.ActivityStatusChanged, string(status))
	t.success("Bug #%d moved to %s", bug.ID, status)
	return bug, nil
}

// --- selection and view ---

// SelectBug selects bug id; zero clears the selection.
func (t *Tracker) SelectBug(id int64) State {
	return t.apply(selectBug(id))
}

// SetQuery sets the search text.
func (t *Tracker) SetQuery(q string) State {
	return t.apply(setQuery(q))
}

// SetStatusFilter sets the status filter.
func (t *Tracker) SetStatusFilter(f models.StatusFilter) State {
	return t.apply(setFilter(f))
}

// SetView switches between board and list layout.
func (t *Tracker) SetView(v models.View) State {
	return t.apply(setView(v))
}

// --- drag and drop ---

// DragStart begins dragging bug.
func (t *Tracker) DragStart(bug *models.Bug) State {
	return t.apply(dragStarted(bug))
}

// DropOn ends the drag over the target column. When the dragged bug's
// current status differs from target, its status is changed. The drag
// always ends, whatever the outcome. An invalid target, such as the empty
// status for a drop outside every column, only ends the drag.
func (t *Tracker) DropOn(ctx context.Context, target models.Status) (*models.Bug, error) {
	t.mu.Lock()
	next, move := t.state.Drag.Drop(target, t.state.Bugs)
	t.state.Drag = next
	t.mu.Unlock()

	if move == nil {
		return nil, nil
	}
	return t.ChangeStatus(ctx, move.BugID, move.To)
}

// --- derived view ---

// BoardView is everything a renderer needs for one pass.
type BoardView struct {
	Phase    Phase               `json:"phase"`
	Err      string              `json:"error,omitempty"`
	View     models.View         `json:"view"`
	Query    string              `json:"query"`
	Filter   models.StatusFilter `json:"filter"`
	Bugs     []*models.Bug       `json:"bugs"`
	Filtered []*models.Bug       `json:"filtered"`
	Columns  board.Columns       `json:"columns"`
	Stats    board.Stats         `json:"stats"`
	Selected *models.Bug         `json:"selected,omitempty"`
	// SelectedComments are the comments attached to the selected bug.
	SelectedComments []*models.Comment `json:"selectedComments"`
	Form             *Form             `json:"form,omitempty"`
	DraggingID       int64             `json:"draggingId,omitempty"`
}

// Empty reports whether the filtered result has no bugs.
func (v BoardView) Empty() bool { return len(v.Filtered) == 0 }

// Derive computes the view for a state. It is deterministic for the same
// bugs, query and filter.
func Derive(s State) BoardView {
	filtered := board.Filter(s.Bugs, s.Query, s.Filter)
	v := BoardView{
		Phase:            s.Phase,
		Err:              s.Err,
		View:             s.View,
		Query:            s.Query,
		Filter:           s.Filter,
		Bugs:             s.Bugs,
		Filtered:         filtered,
		Columns:          board.Group(filtered),
		Stats:            board.Summarize(s.Bugs),
		Form:             s.Form,
		DraggingID:       s.Drag.BugID,
		SelectedComments: []*models.Comment{},
	}
	if sel := s.Selected(); sel != nil {
		v.Selected = sel
		if cs := models.CommentsFor(s.Comments, sel.ID); cs != nil {
			v.SelectedComments = cs
		}
	}
	return v
}

// View derives the current board view.
func (t *Tracker) View() BoardView {
	return Derive(t.Snapshot())
}
