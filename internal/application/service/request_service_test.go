package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

func TestDraftValidator(t *testing.T) {
	v := NewDraftValidator()

	tests := []struct {
		name   string
		mutate func(f *DraftFields)
		fields []string
	}{
		{"valid", func(f *DraftFields) {}, nil},
		{"missing title", func(f *DraftFields) { f.Title = "" }, []string{"title"}},
		{"long title", func(f *DraftFields) { f.Title = strings.Repeat("x", 256) }, []string{"title"}},
		{"long description", func(f *DraftFields) { f.Description = strings.Repeat("x", 5001) }, []string{"description"}},
		{"negative amount", func(f *DraftFields) { f.Amount = -1 }, []string{"amount"}},
		{"amount too large", func(f *DraftFields) { f.Amount = MaxAmount + 1 }, []string{"amount"}},
		{"unknown category", func(f *DraftFields) { f.Category = "FOOD" }, []string{"category"}},
		{"unknown urgency", func(f *DraftFields) { f.Urgency = "ASAP" }, []string{"urgency"}},
		{"travel ends before start", func(f *DraftFields) {
			f.TravelStartDate = datePtr(2026, 5, 10)
			f.TravelEndDate = datePtr(2026, 5, 9)
		}, []string{"travel_end_date"}},
		{"several problems", func(f *DraftFields) {
			f.Title = ""
			f.Description = ""
		}, []string{"title", "description"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := equipmentDraft(1000)
			tt.mutate(&f)

			err := v.Validate(f)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}

			var verr *workflow.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Len(t, verr.Violations, len(tt.fields))
			for _, field := range tt.fields {
				assert.True(t, verr.Has(field), "missing violation for %s", field)
			}
		})
	}
}

func TestRequestService_CreateDraft(t *testing.T) {
	h := newHarness(t)

	fields := equipmentDraft(42000)
	fields.Title = "  Monitors  "
	req, err := h.requests.CreateDraft(h.ctx, h.requester, 7, fields)
	require.NoError(t, err)

	assert.NotZero(t, req.ID)
	assert.Equal(t, "Monitors", req.Title)
	assert.Equal(t, workflow.StateDraft, req.Status)
	assert.Equal(t, int64(7), req.DepartmentID)
	assert.Equal(t, h.requester.ID, req.UserID)
	assert.Equal(t, 0, req.Cycle)

	trail := h.trail(req.ID)
	require.Len(t, trail, 1)
	assert.Equal(t, workflow.ActionCreated, trail[0].Action)
	assert.Nil(t, trail[0].FromStatus)
	assert.Equal(t, h.requester.ID, trail[0].UserID)
	assert.Equal(t, 1, h.metrics.outcomes["create_draft/ok"])
}

func TestRequestService_CreateDraftRejectsInvalidFields(t *testing.T) {
	h := newHarness(t)

	fields := equipmentDraft(1000)
	fields.Title = ""
	_, err := h.requests.CreateDraft(h.ctx, h.requester, 1, fields)
	assert.ErrorIs(t, err, workflow.ErrValidationFailed)
	assert.Equal(t, 1, h.metrics.outcomes["create_draft/validation_failed"])

	list, err := h.requests.List(h.ctx, h.superAdmin, entity.RequestFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRequestService_UpdateDraft(t *testing.T) {
	h := newHarness(t)
	req := h.draft(equipmentDraft(1000))
	version := req.Version

	fields := equipmentDraft(2500)
	fields.Title = "Docking stations"
	require.NoError(t, h.requests.UpdateDraft(h.ctx, req, h.requester, fields))
	assert.Equal(t, "Docking stations", req.Title)
	assert.Equal(t, int64(2500), req.Amount)
	assert.Greater(t, req.Version, version)

	reloaded := h.reload(req.ID)
	assert.Equal(t, "Docking stations", reloaded.Title)
	assert.Len(t, h.trail(req.ID), 1, "edits are not audited")

	err := h.requests.UpdateDraft(h.ctx, req, h.other, fields)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	stale := *req
	stale.Version = version
	assert.ErrorIs(t, h.requests.UpdateDraft(h.ctx, &stale, h.requester, fields), workflow.ErrConflict)

	require.NoError(t, h.approvals.Submit(h.ctx, req, h.requester))
	assert.ErrorIs(t, h.requests.UpdateDraft(h.ctx, req, h.requester, fields), workflow.ErrInvalidState)
}

func TestRequestService_List(t *testing.T) {
	h := newHarness(t)
	mine := h.draft(equipmentDraft(1000))
	travel := equipmentDraft(250000)
	travel.Category = entity.CategoryTravel
	travel.TravelStartDate = datePtr(2026, 6, 1)
	travel.TravelEndDate = datePtr(2026, 6, 3)
	trip := h.draft(travel)

	theirs, err := h.requests.CreateDraft(h.ctx, h.other, 2, equipmentDraft(5000))
	require.NoError(t, err)
	require.NoError(t, h.approvals.Submit(h.ctx, theirs, h.other))

	own, err := h.requests.List(h.ctx, h.requester, entity.RequestFilter{UserID: h.other.ID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, trip.ID, own[0].ID)
	assert.Equal(t, mine.ID, own[1].ID)

	all, err := h.requests.List(h.ctx, h.superAdmin, entity.RequestFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	min := int64(2000)
	filtered, err := h.requests.List(h.ctx, h.superAdmin, entity.RequestFilter{
		Status:    workflow.StateDraft,
		MinAmount: &min,
	}, 10, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, trip.ID, filtered[0].ID)

	byCategory, err := h.requests.List(h.ctx, h.deptAdmin, entity.RequestFilter{Category: entity.CategoryTravel}, 10, 0)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)

	page, err := h.requests.List(h.ctx, h.superAdmin, entity.RequestFilter{}, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, trip.ID, page[0].ID)
}

func TestRequestService_GetMissing(t *testing.T) {
	h := newHarness(t)
	_, err := h.requests.Get(h.ctx, 12345)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}
