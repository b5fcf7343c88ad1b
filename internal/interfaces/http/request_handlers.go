package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/purchase-approval/internal/application/service"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// draftBody is the payload of POST and PUT /requests. Dates are RFC 3339.
type draftBody struct {
	service.DraftFields
	// DepartmentID defaults to the caller's department
	DepartmentID int64 `json:"department_id"`
	// Version, when set, must match the stored version
	Version *int64 `json:"version"`
}

// actionBody carries the optional snapshot version for state changes
type actionBody struct {
	Version *int64 `json:"version"`
	Comment string `json:"comment"`
}

type listRequestsQuery struct {
	Status       string `form:"status"`
	Category     string `form:"category"`
	DepartmentID int64  `form:"department_id"`
	MinAmount    *int64 `form:"min_amount"`
	MaxAmount    *int64 `form:"max_amount"`
	DateFrom     string `form:"date_from"`
	DateTo       string `form:"date_to"`
	Limit        int    `form:"limit"`
	Offset       int    `form:"offset"`
}

// RequestDetail is a request with its steps across every cycle
type RequestDetail struct {
	Request     *entity.Request        `json:"request"`
	Steps       []*entity.ApprovalStep `json:"steps"`
	CurrentStep *entity.ApprovalStep   `json:"current_step"`
}

// ListRequests handles GET /api/v1/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	var q listRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	var violations []workflow.Violation
	filter := entity.RequestFilter{
		DepartmentID: q.DepartmentID,
		MinAmount:    q.MinAmount,
		MaxAmount:    q.MaxAmount,
	}
	if q.Status != "" {
		filter.Status = workflow.State(q.Status)
		if !filter.Status.IsValid() {
			violations = append(violations, workflow.Violation{Field: "status", Message: "unknown status"})
		}
	}
	if q.Category != "" {
		filter.Category = entity.Category(q.Category)
		if !filter.Category.IsValid() {
			violations = append(violations, workflow.Violation{Field: "category", Message: "unknown category"})
		}
	}
	// dates are calendar days in UTC; date_to includes the whole day
	if q.DateFrom != "" {
		day, err := time.Parse(time.DateOnly, q.DateFrom)
		if err != nil {
			violations = append(violations, workflow.Violation{Field: "date_from", Message: "must be YYYY-MM-DD"})
		} else {
			filter.CreatedFrom = &day
		}
	}
	if q.DateTo != "" {
		day, err := time.Parse(time.DateOnly, q.DateTo)
		if err != nil {
			violations = append(violations, workflow.Violation{Field: "date_to", Message: "must be YYYY-MM-DD"})
		} else {
			end := day.AddDate(0, 0, 1)
			filter.CreatedTo = &end
		}
	}
	if err := workflow.NewValidationError(violations); err != nil {
		h.respondError(c, err)
		return
	}

	requests, err := h.services.Requests.List(c.Request.Context(), currentUser(c), filter, q.Limit, q.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, requests)
}

// CreateRequest handles POST /api/v1/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var body draftBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user := currentUser(c)
	departmentID := body.DepartmentID
	if departmentID == 0 {
		departmentID = user.DepartmentID
	}

	req, err := h.services.Requests.CreateDraft(c.Request.Context(), user, departmentID, body.DraftFields)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, req)
}

// GetRequest handles GET /api/v1/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, found := h.loadRequest(c)
	if !found {
		return
	}

	ctx := c.Request.Context()
	steps, err := h.services.Approvals.Steps(ctx, req.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	current, err := h.services.Approvals.CurrentPendingStep(ctx, req.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, RequestDetail{Request: req, Steps: steps, CurrentStep: current})
}

// UpdateRequest handles PUT /api/v1/requests/:id
func (h *Handlers) UpdateRequest(c *gin.Context) {
	var body draftBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req, found := h.loadRequest(c)
	if !found {
		return
	}
	applyVersion(req, body.Version)

	user := currentUser(c)
	if err := h.policy.Update(user, req); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.services.Requests.UpdateDraft(c.Request.Context(), req, user, body.DraftFields); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, req)
}

// SubmitRequest handles POST /api/v1/requests/:id/submit
func (h *Handlers) SubmitRequest(c *gin.Context) {
	h.changeState(c, h.policy.Submit, h.services.Approvals.Submit)
}

// ResubmitRequest handles POST /api/v1/requests/:id/resubmit
func (h *Handlers) ResubmitRequest(c *gin.Context) {
	h.changeState(c, h.policy.Resubmit, h.services.Approvals.Resubmit)
}

// CancelRequest handles POST /api/v1/requests/:id/cancel
func (h *Handlers) CancelRequest(c *gin.Context) {
	h.changeState(c, h.policy.Cancel, h.services.Approvals.Cancel)
}

// ArchiveRequest handles POST /api/v1/requests/:id/archive
func (h *Handlers) ArchiveRequest(c *gin.Context) {
	h.changeState(c, h.policy.Archive, h.services.Approvals.Archive)
}

// ApproveRequest handles POST /api/v1/requests/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	h.decide(c, h.services.Approvals.Approve)
}

// RejectRequest handles POST /api/v1/requests/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	h.decide(c, h.services.Approvals.Reject)
}

// ReturnRequest handles POST /api/v1/requests/:id/return
func (h *Handlers) ReturnRequest(c *gin.Context) {
	h.decide(c, h.services.Approvals.Return)
}

// Inbox handles GET /api/v1/approvals/inbox
func (h *Handlers) Inbox(c *gin.Context) {
	requests, err := h.services.Approvals.Inbox(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, requests)
}

type authorizeFunc func(user *entity.User, req *entity.Request) error

type transitionFunc func(ctx context.Context, req *entity.Request, actor *entity.User) error

type decisionFunc func(ctx context.Context, req *entity.Request, actor *entity.User, comment string) error

func (h *Handlers) changeState(c *gin.Context, authorize authorizeFunc, transition transitionFunc) {
	body, valid := bindActionBody(c)
	if !valid {
		return
	}
	req, found := h.loadRequest(c)
	if !found {
		return
	}
	applyVersion(req, body.Version)

	user := currentUser(c)
	if err := authorize(user, req); err != nil {
		h.respondError(c, err)
		return
	}
	if err := transition(c.Request.Context(), req, user); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, req)
}

// decide leaves the role check to the service, which compares the actor
// against the current step inside the transaction
func (h *Handlers) decide(c *gin.Context, fn decisionFunc) {
	body, valid := bindActionBody(c)
	if !valid {
		return
	}
	req, found := h.loadRequest(c)
	if !found {
		return
	}
	applyVersion(req, body.Version)

	if err := fn(c.Request.Context(), req, currentUser(c), body.Comment); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, req)
}

// bindActionBody accepts an empty body
func bindActionBody(c *gin.Context) (actionBody, bool) {
	var body actionBody
	if c.Request.ContentLength == 0 {
		return body, true
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return body, false
	}
	return body, true
}

// applyVersion makes the caller's snapshot version the one compared on write
func applyVersion(req *entity.Request, version *int64) {
	if version != nil {
		req.Version = *version
	}
}
