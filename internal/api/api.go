// Package api serves the bug board over a JSON HTTP API. Handlers are thin:
// they translate requests into tracker intents and render derived views.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/store"
	"github.com/joescharf/bugboard/internal/tracker"
	"github.com/joescharf/bugboard/internal/validation"
)

// Server provides the REST API handlers.
type Server struct {
	tracker *tracker.Tracker
	notices *tracker.NoticeLog
	logger  *slog.Logger

	// formMu serializes the open, edit, submit sequence of create and
	// update requests, which share the tracker's single form session.
	formMu sync.Mutex
}

// NewServer creates an API server over t. Notices produced by t should be
// sent to notices; GET /api/v1/notices drains them.
func NewServer(t *tracker.Tracker, notices *tracker.NoticeLog, logger *slog.Logger) *Server {
	if notices == nil {
		notices = &tracker.NoticeLog{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{tracker: t, notices: notices, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/bugs", s.listBugs)
	mux.HandleFunc("POST /api/v1/bugs", s.createBug)
	mux.HandleFunc("GET /api/v1/bugs/{id}", s.getBug)
	mux.HandleFunc("PUT /api/v1/bugs/{id}", s.updateBug)
	mux.HandleFunc("DELETE /api/v1/bugs/{id}", s.deleteBug)
	mux.HandleFunc("POST /api/v1/bugs/{id}/status", s.changeStatus)
	mux.HandleFunc("GET /api/v1/bugs/{id}/comments", s.listComments)

	mux.HandleFunc("POST /api/v1/bugs/{id}/drag", s.dragStart)
	mux.HandleFunc("POST /api/v1/drop", s.drop)

	mux.HandleFunc("GET /api/v1/board", s.getBoard)
	mux.HandleFunc("GET /api/v1/stats", s.getStats)
	mux.HandleFunc("GET /api/v1/notices", s.listNotices)
	mux.HandleFunc("POST /api/v1/reload", s.reload)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeTrackerError maps tracker and store errors onto status codes.
func (s *Server) writeTrackerError(w http.ResponseWriter, err error) {
	var fields validation.Errors
	switch {
	case errors.As(err, &fields):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  err.Error(),
			"fields": fields,
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tracker.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("api request", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid bug id")
		return 0, false
	}
	return id, true
}

// viewFor derives a view for the request's q and status parameters without
// touching the session's own search state.
func viewFor(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) (tracker.BoardView, bool) {
	filter, err := models.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return tracker.BoardView{}, false
	}
	st := t.Snapshot()
	st.Query = r.URL.Query().Get("q")
	st.Filter = filter
	return tracker.Derive(st), true
}

// bugRequest is the body of create and update requests. Absent fields keep
// the draft's current value.
type bugRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Severity    *string  `json:"severity"`
	Status      *string  `json:"status"`
	Reporter    *string  `json:"reporter"`
	Assignee    *string  `json:"assignee"`
	Tags        []string `json:"tags"`
}

// parse checks the enumerations and returns the draft edit.
func (req bugRequest) parse() (func(*models.Draft), error) {
	var (
		sev    models.Severity
		status models.Status
		err    error
	)
	if req.Severity != nil {
		if sev, err = models.ParseSeverity(*req.Severity); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if status, err = models.ParseStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	return func(d *models.Draft) {
		if req.Title != nil {
			d.Title = *req.Title
		}
		if req.Description != nil {
			d.Description = *req.Description
		}
		if req.Severity != nil {
			d.Severity = sev
		}
		if req.Status != nil {
			d.Status = status
		}
		if req.Reporter != nil {
			d.Reporter = *req.Reporter
		}
		if req.Assignee != nil {
			d.Assignee = *req.Assignee
		}
		if req.Tags != nil {
			d.Tags = []string{}
			for _, tag := range req.Tags {
				d.AddTag(tag)
			}
		}
	}, nil
}

func decodeBugRequest(w http.ResponseWriter, r *http.Request) (func(*models.Draft), bool) {
	var req bugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}
	edit, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return edit, true
}

// --- Bugs ---

func (s *Server) listBugs(w http.ResponseWriter, r *http.Request) {
	v, ok := viewFor(w, r, s.tracker)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Filtered)
}

func (s *Server) getBug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	bug, found := s.tracker.Snapshot().Bug(id)
	if !found {
		writeError(w, http.StatusNotFound, "bug not found")
		return
	}
	writeJSON(w, http.StatusOK, bug)
}

func (s *Server) createBug(w http.ResponseWriter, r *http.Request) {
	edit, ok := decodeBugRequest(w, r)
	if !ok {
		return
	}

	s.formMu.Lock()
	defer s.formMu.Unlock()

	s.tracker.OpenCreateForm()
	if _, err := s.tracker.UpdateDraft(edit); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	bug, err := s.tracker.SubmitForm(r.Context())
	if err != nil {
		s.tracker.CloseForm()
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bug)
}

func (s *Server) updateBug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	edit, ok := decodeBugRequest(w, r)
	if !ok {
		return
	}

	s.formMu.Lock()
	defer s.formMu.Unlock()

	existing, found := s.tracker.Snapshot().Bug(id)
	if !found {
		writeError(w, http.StatusNotFound, "bug not found")
		return
	}
	s.tracker.OpenEditForm(existing)
	if _, err := s.tracker.UpdateDraft(edit); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	bug, err := s.tracker.SubmitForm(r.Context())
	if err != nil {
		s.tracker.CloseForm()
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bug)
}

func (s *Server) deleteBug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.tracker.DeleteBug(r.Context(), id); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bug, err := s.tracker.ChangeStatus(r.Context(), id, status)
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bug)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	comments := models.CommentsFor(s.tracker.Snapshot().Comments, id)
	if comments == nil {
		comments = []*models.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// --- Drag and drop ---

func (s *Server) dragStart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	bug, found := s.tracker.Snapshot().Bug(id)
	if !found {
		writeError(w, http.StatusNotFound, "bug not found")
		return
	}
	st := s.tracker.DragStart(bug)
	writeJSON(w, http.StatusOK, st.Drag)
}

// drop ends the drag. An empty or unknown status is a drop outside every
// column and only ends the drag.
func (s *Server) drop(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	moved, err := s.tracker.DropOn(r.Context(), models.Status(req.Status))
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved})
}

// --- Views ---

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	v, ok := viewFor(w, r, s.tracker)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Columns)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.View().Stats)
}

func (s *Server) listNotices(w http.ResponseWriter, r *http.Request) {
	notices := s.notices.Drain()
	if notices == nil {
		notices = []tracker.Notice{}
	}
	writeJSON(w, http.StatusOK, notices)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.LoadAll(r.Context()); err != nil {
		if errors.Is(err, tracker.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	v := s.tracker.View()
	writeJSON(w, http.StatusOK, map[string]any{"phase": v.Phase, "stats": v.Stats})
}
