// Package api serves the submission journal over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rossigee/irp-integration/internal/storage"
	"github.com/rossigee/irp-integration/pkg/types"
)

// Version is reported by the health endpoint.
var Version = "dev"

// degradedThreshold is the number of unsettled submissions above which the
// service reports itself degraded.
const degradedThreshold = 50

// Journal reads journalled submissions
type Journal interface {
	GetSubmission(ctx context.Context, id string) (*storage.SubmissionRecord, error)
	ListSubmissions(ctx context.Context, filter storage.ListSubmissionsFilter) ([]*storage.SubmissionRecord, error)
}

// Tracker refreshes unsettled submissions
type Tracker interface {
	Active(ctx context.Context) (int, error)
	Refresh(ctx context.Context) (int, error)
}

// Handler handles HTTP API requests
type Handler struct {
	journal Journal
	tracker Tracker
	metrics http.Handler
	started time.Time
}

// NewHandler creates a new API handler. metrics may be nil.
func NewHandler(journal Journal, tracker Tracker, metrics http.Handler) *Handler {
	return &Handler{
		journal: journal,
		tracker: tracker,
		metrics: metrics,
		started: time.Now(),
	}
}

// SetupRoutes configures the API routes
func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api/v1")
	{
		api.GET("/submissions", handler.ListSubmissions)
		api.GET("/submissions/:id", handler.GetSubmission)
		api.POST("/submissions/refresh", handler.RefreshSubmissions)
	}

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	if handler.metrics != nil {
		router.GET("/metrics", gin.WrapH(handler.metrics))
	}
}

func toResponse(r *storage.SubmissionRecord) types.SubmissionResponse {
	resp := types.SubmissionResponse{
		ID:          r.ID,
		Kind:        r.Kind,
		RemoteID:    r.RemoteID,
		Name:        r.Name,
		Status:      r.Status,
		Strategy:    r.Strategy,
		Error:       r.ErrorMessage,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
	if json.Valid([]byte(r.RequestJSON)) {
		resp.Request = json.RawMessage(r.RequestJSON)
	}
	if r.ResultJSON != "" && json.Valid([]byte(r.ResultJSON)) {
		resp.Result = json.RawMessage(r.ResultJSON)
	}
	return resp
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid request",
			Message: name + " must be a non-negative integer",
			Code:    400,
		})
		return 0, false
	}
	return n, true
}

// ListSubmissions returns journalled submissions, most recent first
func (h *Handler) ListSubmissions(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}

	filter := storage.ListSubmissionsFilter{
		Kind:   c.Query("kind"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	}
	records, err := h.journal.ListSubmissions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "failed to list submissions",
			Message: err.Error(),
			Code:    500,
		})
		return
	}

	out := types.SubmissionListResponse{
		Submissions: make([]types.SubmissionResponse, 0, len(records)),
		Limit:       limit,
		Offset:      offset,
	}
	for _, r := range records {
		out.Submissions = append(out.Submissions, toResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// GetSubmission returns a single submission
func (h *Handler) GetSubmission(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid request",
			Message: "id parameter is required",
			Code:    400,
		})
		return
	}

	record, err := h.journal.GetSubmission(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "submission not found",
			Message: err.Error(),
			Code:    404,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "failed to read submission",
			Message: err.Error(),
			Code:    500,
		})
		return
	}

	c.JSON(http.StatusOK, toResponse(record))
}

// RefreshSubmissions re-reads the remote status of unsettled submissions
func (h *Handler) RefreshSubmissions(c *gin.Context) {
	updated, err := h.tracker.Refresh(c.Request.Context())
	resp := types.RefreshResponse{Updated: updated}
	if err != nil {
		resp.Errors = err.Error()
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HealthCheck provides service health information
func (h *Handler) HealthCheck(c *gin.Context) {
	active, err := h.tracker.Active(c.Request.Context())

	response := types.HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Version:    Version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		ActiveJobs: active,
	}

	if err != nil {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	// Report degraded when submissions are piling up unsettled
	if active > degradedThreshold {
		response.Status = "degraded"
	}

	c.JSON(http.StatusOK, response)
}
