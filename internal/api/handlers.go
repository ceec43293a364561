// Package api exposes the HTTP surface the browser client calls: read-only
// views over the job registries and command endpoints that forward to the
// dispatcher. The addressed job is always an explicit path parameter; the
// API holds no notion of a "currently selected" job.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sendfleet/campaignsync/internal/core"
	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
)

// Handlers bundles the API dependencies.
type Handlers struct {
	dispatcher *core.Dispatcher
	registries *core.Registries
	channel    core.Emitter
	logger     *slog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(dispatcher *core.Dispatcher, registries *core.Registries, channel core.Emitter, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		dispatcher: dispatcher,
		registries: registries,
		channel:    channel,
		logger:     logger,
	}
}

// Health reports process liveness and channel connectivity.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": h.channel.Connected(),
	})
}

// ListJobs returns every job of the family, sorted by jobId.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs": h.registries.Family(family).List(),
	})
}

// GetJob returns one job, including its log.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "jobID")
	rec, found := h.registries.Family(family).Get(jobID)
	if !found {
		writeError(w, apperrors.NotFoundf("no %s job %s", family, jobID))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// StartJob starts a new job from the posted StartRequest.
func (h *Handlers) StartJob(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	var req model.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid request body"))
		return
	}
	rec, err := h.dispatcher.Start(r.Context(), family, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Command handles pause/resume/stop/remove for one job.
func (h *Handlers) Command(w http.ResponseWriter, r *http.Request) {
	family, ok := h.family(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "jobID")

	var err error
	switch verb := chi.URLParam(r, "verb"); verb {
	case "pause":
		err = h.dispatcher.Pause(r.Context(), family, jobID)
	case "resume":
		err = h.dispatcher.Resume(r.Context(), family, jobID)
	case "stop":
		err = h.dispatcher.Stop(r.Context(), family, jobID)
	case "remove":
		err = h.dispatcher.Remove(r.Context(), family, jobID)
	default:
		err = apperrors.Validationf("unknown verb %q", verb)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (h *Handlers) family(w http.ResponseWriter, r *http.Request) (model.JobFamily, bool) {
	var family model.JobFamily
	if err := family.UnmarshalText([]byte(chi.URLParam(r, "family"))); err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid family"))
		return "", false
	}
	return family, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response writer errors are not actionable here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.Code(err) {
	case apperrors.ErrCodeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeConflict:
		status = http.StatusConflict
	case apperrors.ErrCodeTransport:
		status = http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"code":  apperrors.Code(err),
	})
}
