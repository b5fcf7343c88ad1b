package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

func TestRule_Covers(t *testing.T) {
	max := int64(500000)
	bounded := &Rule{MinAmount: 100001, MaxAmount: &max}
	open := &Rule{MinAmount: 500001}

	assert.False(t, bounded.Covers(100000))
	assert.True(t, bounded.Covers(100001))
	assert.True(t, bounded.Covers(500000))
	assert.False(t, bounded.Covers(500001))
	assert.True(t, open.Covers(1<<40))
}

func TestRule_AppliesTo(t *testing.T) {
	software := CategorySoftware
	assert.True(t, (&Rule{}).AppliesTo(CategoryTravel))
	assert.True(t, (&Rule{Category: &software}).AppliesTo(CategorySoftware))
	assert.False(t, (&Rule{Category: &software}).AppliesTo(CategoryTravel))
}

func TestNewStepBatch(t *testing.T) {
	now := time.Now()
	steps := NewStepBatch(7, 2, []Role{RoleApprover, RoleDeptAdmin}, now)

	require.Len(t, steps, 2)
	for i, s := range steps {
		assert.Equal(t, int64(7), s.RequestID)
		assert.Equal(t, 2, s.Cycle)
		assert.Equal(t, i+1, s.StepNumber)
		assert.Equal(t, workflow.StepPending, s.Status)
		assert.True(t, s.IsPending())
	}
	assert.Equal(t, RoleDeptAdmin, steps[1].ApproverRole)
}

func TestRole(t *testing.T) {
	assert.True(t, RoleSuperAdmin.IsAdmin())
	assert.False(t, RoleApprover.IsAdmin())
	assert.False(t, RoleRequester.CanApprove())
	assert.True(t, RoleDeptAdmin.CanApprove())
	assert.False(t, Role("manager").IsValid())
}

func TestRequest_SnapshotCopiesDates(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stored := start
	req := &Request{ID: 1, TravelStartDate: &stored}

	snap := req.Snapshot()
	*req.TravelStartDate = start.AddDate(0, 0, 5)

	assert.Equal(t, start, *snap.TravelStartDate)
	assert.NotSame(t, req.TravelStartDate, snap.TravelStartDate)
}
