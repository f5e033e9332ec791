package extractions

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/ratesheet/pkg/handlers"
	"github.com/JaimeStill/ratesheet/pkg/middleware"
	"github.com/JaimeStill/ratesheet/pkg/pagination"
	"github.com/JaimeStill/ratesheet/pkg/routes"
)

// Handler provides HTTP endpoints for extraction jobs.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler for the given system and pagination limits.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "extractions"),
		pagination: pagination,
	}
}

// Routes returns the contract-scoped and job-scoped extraction endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/schema",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.Schema},
				},
			},
			{
				Prefix: "/contracts/{contractId}",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/extract", Handler: h.Start},
					{Method: "GET", Pattern: "/extraction-jobs", Handler: h.ListForContract},
				},
			},
			{
				Prefix: "/extraction-jobs",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
					{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
					{Method: "GET", Pattern: "/{id}/files", Handler: h.ListFiles},
					{Method: "GET", Pattern: "/{id}/download", Handler: h.Download},
					{Method: "GET", Pattern: "/{id}/download/{file}", Handler: h.Download},
				},
			},
		},
	}
}

type activeJobResponse struct {
	Error  string    `json:"error"`
	JobID  uuid.UUID `json:"jobId"`
	Status string    `json:"status"`
}

// Start accepts an extraction request and returns 202 with the pending job id.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	contractID, err := uuid.Parse(r.PathValue("contractId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	job, err := h.sys.Start(r.Context(), StartCommand{
		TenantID:   caller.tenantID,
		ContractID: contractID,
		UserID:     caller.userID,
	})
	if err != nil {
		var active *ActiveJobError
		if errors.As(err, &active) {
			h.logger.Warn("extraction already active", "contract_id", contractID, "job_id", active.JobID)
			handlers.RespondJSON(w, http.StatusBadRequest, activeJobResponse{
				Error:  active.Error(),
				JobID:  active.JobID,
				Status: active.Status,
			})
			return
		}
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, StartResponse{
		JobID:   job.ID,
		Status:  StatusPending,
		Message: "Extraction started",
	})
}

// ListForContract returns every job of a contract, newest first.
func (h *Handler) ListForContract(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	contractID, err := uuid.Parse(r.PathValue("contractId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	jobs, err := h.sys.ListForContract(r.Context(), caller.tenantID, contractID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, jobs)
}

// List returns a page of the caller's jobs filtered by query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), caller.tenantID, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a job with its computed progress.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.jobRequest(w, r)
	if !ok {
		return
	}

	job, err := h.sys.Find(r.Context(), caller.tenantID, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, job)
}

// Cancel stops an active job.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.jobRequest(w, r)
	if !ok {
		return
	}

	job, err := h.sys.Cancel(r.Context(), caller.tenantID, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, job)
}

// ListFiles lists a completed job's artifacts, optionally filtered by the
// pattern query parameter.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.jobRequest(w, r)
	if !ok {
		return
	}

	listing, err := h.sys.ListArtifacts(r.Context(), caller.tenantID, id, r.URL.Query().Get("pattern"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, listing)
}

// Download streams one artifact of a completed job. Without a file path
// value the consolidated artifact is sent. Jobs that have not completed
// answer 404.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.jobRequest(w, r)
	if !ok {
		return
	}

	name := r.PathValue("file")
	if name == "" {
		name = ConsolidatedArtifact
	}

	blob, err := h.sys.OpenArtifact(r.Context(), caller.tenantID, id, name)
	if err != nil {
		status := MapHTTPStatus(err)
		if errors.Is(err, ErrNotCompleted) {
			status = http.StatusNotFound
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}
	defer blob.Body.Close()

	contentType := blob.ContentType
	if contentType == "" {
		contentType = artifactContentType
	}
	w.Header().Set("Content-Type", contentType)
	if blob.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.ContentLength, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, blob.Body); err != nil {
		h.logger.Warn("artifact stream interrupted", "job_id", id, "file", name, "error", err)
	}
}

// Schema returns the loaded section schema.
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.sys.Schema().Schema())
}

type requester struct {
	tenantID uuid.UUID
	userID   string
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (requester, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, middleware.ErrUnauthenticated)
		return requester{}, false
	}

	tenantID, err := uuid.Parse(id.TenantID)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, middleware.ErrUnauthenticated)
		return requester{}, false
	}

	return requester{tenantID: tenantID, userID: id.UserID}, true
}

func (h *Handler) jobRequest(w http.ResponseWriter, r *http.Request) (requester, uuid.UUID, bool) {
	c, ok := h.caller(w, r)
	if !ok {
		return requester{}, uuid.Nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return requester{}, uuid.Nil, false
	}

	return c, id, true
}
