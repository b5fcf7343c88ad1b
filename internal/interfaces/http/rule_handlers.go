package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/purchase-approval/internal/application/policy"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
)

// ruleBody is the payload of POST and PUT /rules
type ruleBody struct {
	Name          string           `json:"name"`
	MinAmount     int64            `json:"min_amount"`
	MaxAmount     *int64           `json:"max_amount"`
	ApprovalSteps []entity.Role    `json:"approval_steps"`
	Category      *entity.Category `json:"category"`
	// IsActive defaults to true on create and to the stored value on update
	IsActive *bool `json:"is_active"`
}

func (b ruleBody) applyTo(r *entity.Rule) {
	r.Name = b.Name
	r.MinAmount = b.MinAmount
	r.MaxAmount = b.MaxAmount
	r.ApprovalSteps = b.ApprovalSteps
	r.Category = b.Category
	if b.IsActive != nil {
		r.IsActive = *b.IsActive
	}
}

// ListRules handles GET /api/v1/rules
func (h *Handlers) ListRules(c *gin.Context) {
	if !h.canManageRules(c) {
		return
	}
	rules, err := h.services.Rules.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rules)
}

// GetRule handles GET /api/v1/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	if !h.canManageRules(c) {
		return
	}
	id, valid := paramID(c)
	if !valid {
		return
	}
	r, err := h.services.Rules.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, r)
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	if !h.canManageRules(c) {
		return
	}
	var body ruleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	r := &entity.Rule{IsActive: true}
	body.applyTo(r)
	if err := h.services.Rules.Create(c.Request.Context(), r); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, r)
}

// UpdateRule handles PUT /api/v1/rules/:id
func (h *Handlers) UpdateRule(c *gin.Context) {
	if !h.canManageRules(c) {
		return
	}
	id, valid := paramID(c)
	if !valid {
		return
	}
	var body ruleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	r, err := h.services.Rules.Get(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	body.applyTo(r)
	if err := h.services.Rules.Update(ctx, r); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, r)
}

// DeleteRule handles DELETE /api/v1/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	if !h.canManageRules(c) {
		return
	}
	id, valid := paramID(c)
	if !valid {
		return
	}
	if err := h.services.Rules.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) canManageRules(c *gin.Context) bool {
	if err := policy.ManageRules(currentUser(c)); err != nil {
		h.respondError(c, err)
		return false
	}
	return true
}
