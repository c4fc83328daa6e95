package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/lessonprogress/internal/api/middleware"
	"github.com/mcoot/lessonprogress/internal/api/request"
	"github.com/mcoot/lessonprogress/internal/api/response"
	"github.com/mcoot/lessonprogress/internal/events/sse"
	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/services/progress"
)

// ProgressHandler handles progress record endpoints
type ProgressHandler struct {
	progressService *progress.Service
	hubManager      *sse.HubManager
}

// NewProgressHandler creates a new progress handler. hubManager may be nil,
// in which case the event stream endpoint is unavailable.
func NewProgressHandler(progressService *progress.Service, hubManager *sse.HubManager) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
		hubManager:      hubManager,
	}
}

// Initialize handles POST /api/v1/progress
func (h *ProgressHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetIdentity(r.Context())

	var req request.InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	owner := caller
	if req.Owner != "" {
		var err error
		owner, err = model.ParseIdentity(req.Owner)
		if err != nil {
			WriteError(w, err)
			return
		}
	}

	record, err := h.progressService.Initialize(r.Context(), caller, owner)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ProgressRecordFromModel(record))
}

// GetMine handles GET /api/v1/progress/me
func (h *ProgressHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	h.writeRecord(w, r, middleware.MustGetIdentity(r.Context()))
}

// Get handles GET /api/v1/progress/{owner}
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromPath(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.writeRecord(w, r, owner)
}

func (h *ProgressHandler) writeRecord(w http.ResponseWriter, r *http.Request, owner model.Identity) {
	record, err := h.progressService.GetRecord(r.Context(), owner)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ProgressRecordFromModel(record))
}

// CompleteLesson handles POST /api/v1/progress/{owner}/lessons
func (h *ProgressHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetIdentity(r.Context())

	owner, err := ownerFromPath(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.CompleteLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	completion, err := h.progressService.CompleteLesson(
		r.Context(),
		caller,
		owner,
		model.LessonID(req.LessonID),
		model.Award{Points: req.Points, Reward: req.Reward},
	)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.CompletionResponseFromService(completion))
}

// Events handles GET /api/v1/progress/{owner}/events
func (h *ProgressHandler) Events(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetIdentity(r.Context())

	owner, err := ownerFromPath(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if caller != owner {
		WriteError(w, model.ErrIdentityMismatch)
		return
	}
	if h.hubManager == nil {
		WriteError(w, NewInternalError())
		return
	}

	sse.ServeSSE(w, r, h.hubManager, owner)
}

func ownerFromPath(r *http.Request) (model.Identity, error) {
	return model.ParseIdentity(mux.Vars(r)["owner"])
}
