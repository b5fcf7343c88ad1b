package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/policy"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	policy   *policy.RequestPolicy
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, requestPolicy *policy.RequestPolicy, logger *zap.Logger) *Handlers {
	return &Handlers{
		services: services,
		policy:   requestPolicy,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Error: msg})
}

// respondError maps workflow errors to status codes. Anything unrecognised
// is logged and reported as 500 without detail.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var verr *workflow.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, Response{Error: workflow.ErrValidationFailed.Error(), Fields: verr.Fields()})
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Error: "not found"})
	case errors.Is(err, workflow.ErrForbidden), errors.Is(err, workflow.ErrRoleMismatch):
		c.JSON(http.StatusForbidden, Response{Error: err.Error()})
	case errors.Is(err, workflow.ErrConflict):
		c.JSON(http.StatusConflict, Response{Error: "request was modified concurrently, reload and retry"})
	case errors.Is(err, workflow.ErrInvalidState), errors.Is(err, workflow.ErrNoPendingStep):
		c.JSON(http.StatusUnprocessableEntity, Response{Error: err.Error()})
	default:
		_ = c.Error(err)
		h.logger.Error("Request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, Response{Error: "internal error"})
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// loadRequest resolves :id to a request the current user may view
func (h *Handlers) loadRequest(c *gin.Context) (*entity.Request, bool) {
	id, valid := paramID(c)
	if !valid {
		return nil, false
	}

	req, err := h.services.Requests.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}

	if err := h.policy.View(c.Request.Context(), currentUser(c), req); err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return req, true
}
