// Package handlers exposes the report pipeline over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/service"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

const SessionHeader = "x-session-id"

type Handler struct {
	svc *service.ReportService
}

func New(svc *service.ReportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reports/generate", h.generateReport)
		r.Post("/reports/{id}/evaluate", h.evaluateReport)
		r.Get("/reports", h.listReports)
		r.Get("/jobs", h.listJobs)
		r.Get("/jobs/{id}", h.getJob)
		r.Post("/jobs/{id}/process", h.processJob)
		r.Post("/projects/fetch", h.fetchProject)
	})
	r.Get("/health", h.health)
}

type jobResponse struct {
	JobID       uuid.UUID        `json:"jobId"`
	Status      model.JobStatus  `json:"status"`
	Kind        string           `json:"kind"`
	CreatedAt   time.Time        `json:"createdAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Result      *model.JobResult `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func toJobResponse(job *model.Job) jobResponse {
	resp := jobResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Kind:        job.Kind,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
	}
	if job.Result != nil {
		resp.Result = &job.Result.Data
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *service.ErrValidation
	var notFoundErr *service.ErrResourceNotFound
	var fetchErr *service.ErrProjectFetchFailed

	switch {
	case errors.As(err, &validationErr):
		render.Status(r, http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		render.Status(r, http.StatusNotFound)
	case errors.As(err, &fetchErr):
		render.Status(r, http.StatusBadGateway)
	default:
		render.Status(r, http.StatusInternalServerError)
	}
	render.JSON(w, r, errorResponse{Error: err.Error()})
}

type generateRequest struct {
	service.GenerateRequest
	Wait bool `json:"wait,omitempty"`
}

func (h *Handler) generateReport(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)

	var req generateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, service.NewErrValidation("malformed request body"))
		return
	}

	if req.Wait {
		outcome, err := h.svc.GenerateAndWait(r.Context(), sessionID, req.GenerateRequest)
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, outcome)
		return
	}

	job, err := h.svc.CreateGenerationJob(r.Context(), sessionID, req.GenerateRequest)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, toJobResponse(job))
}

type evaluateRequest struct {
	ProjectCount int `json:"projectCount,omitempty"`
}

func (h *Handler) evaluateReport(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)

	reportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, service.NewErrValidation("malformed report id"))
		return
	}

	var req evaluateRequest
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			renderError(w, r, service.NewErrValidation("malformed request body"))
			return
		}
	}

	job, err := h.svc.CreateEvaluationJob(r.Context(), sessionID, reportID, req.ProjectCount)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, toJobResponse(job))
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, service.NewErrValidation("malformed job id"))
		return
	}

	job, err := h.svc.GetJob(r.Context(), sessionID, jobID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, toJobResponse(job))
}

func (h *Handler) processJob(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, service.NewErrValidation("malformed job id"))
		return
	}

	if err := h.svc.ProcessJob(r.Context(), sessionID, jobID); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "triggered"})
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		renderError(w, r, service.NewErrValidation("missing session id"))
		return
	}

	jobList, err := h.svc.ListJobs(r.Context(), sessionID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	resp := make([]jobResponse, 0, len(jobList))
	for i := range jobList {
		resp = append(resp, toJobResponse(&jobList[i]))
	}
	render.JSON(w, r, resp)
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		renderError(w, r, service.NewErrValidation("missing session id"))
		return
	}

	reports, err := h.svc.ListReports(r.Context(), sessionID)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, reports)
}

type fetchProjectRequest struct {
	ProjectID string `json:"projectId"`
}

func (h *Handler) fetchProject(w http.ResponseWriter, r *http.Request) {
	var req fetchProjectRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, service.NewErrValidation("malformed request body"))
		return
	}

	snapshot, err := h.svc.FetchProjectSnapshot(r.Context(), r.Header.Get(SessionHeader), req.ProjectID)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, snapshot)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}
