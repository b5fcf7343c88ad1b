package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
	"github.com/garyjia/purchase-approval/pkg/database"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "repo.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run(database.Migrations()))
	return db.DB
}

func TestRequestAndStepRepositories(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	logger := zap.NewNop()

	users := NewUserRepository(db, logger)
	requests := NewRequestRepository(db, logger)
	steps := NewApprovalStepRepository(db, logger)

	owner := &entity.User{Name: "Rita", Email: "rita@example.com", Role: entity.RoleRequester, DepartmentID: 3}
	require.NoError(t, users.Create(ctx, owner))

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)
	req := &entity.Request{
		UserID: owner.ID, DepartmentID: 3, Title: "Conference trip", Description: "GopherCon",
		Category: entity.CategoryTravel, Amount: 250000, Urgency: entity.UrgencyNormal,
		TravelStartDate: &start, TravelEndDate: &end,
	}
	require.NoError(t, requests.Create(ctx, req))
	assert.Equal(t, int64(1), req.Version)
	assert.Equal(t, workflow.StateDraft, req.Status)

	loaded, err := requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, entity.CategoryTravel, loaded.Category)
	require.NotNil(t, loaded.TravelEndDate)
	assert.True(t, end.Equal(*loaded.TravelEndDate))

	missing, err := requests.GetByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)

	loaded.Status = workflow.StateInReview
	loaded.Cycle = 1
	require.NoError(t, requests.Save(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	stale := *req
	stale.Title = "overwrite"
	assert.ErrorIs(t, requests.Save(ctx, &stale), workflow.ErrConflict)

	batch := entity.NewStepBatch(req.ID, 1, []entity.Role{entity.RoleApprover, entity.RoleDeptAdmin}, time.Now())
	require.NoError(t, steps.CreateBatch(ctx, batch))

	inbox, err := requests.ListAwaitingRole(ctx, entity.RoleApprover)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, req.ID, inbox[0].ID)

	inbox, err = requests.ListAwaitingRole(ctx, entity.RoleDeptAdmin)
	require.NoError(t, err)
	assert.Empty(t, inbox)

	current, err := steps.CurrentPending(ctx, req.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 1, current.StepNumber)

	actor := owner.ID
	current.Status = workflow.StepApproved
	current.ActedBy = &actor
	require.NoError(t, steps.Decide(ctx, current))
	assert.ErrorIs(t, steps.Decide(ctx, current), workflow.ErrConflict)

	inbox, err = requests.ListAwaitingRole(ctx, entity.RoleDeptAdmin)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)

	n, err := steps.CancelPending(ctx, req.ID, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	none, err := steps.CurrentPending(ctx, req.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := steps.ListByRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, workflow.StepApproved, all[0].Status)
	assert.Equal(t, workflow.StepCancelled, all[1].Status)
	require.NotNil(t, all[0].ActedBy)
	assert.Nil(t, all[1].ActedBy)
}

func TestRequestRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	logger := zap.NewNop()
	users := NewUserRepository(db, logger)
	requests := NewRequestRepository(db, logger)

	a := &entity.User{Name: "A", Email: "a@example.com", Role: entity.RoleRequester, DepartmentID: 1}
	b := &entity.User{Name: "B", Email: "b@example.com", Role: entity.RoleRequester, DepartmentID: 2}
	require.NoError(t, users.Create(ctx, a))
	require.NoError(t, users.Create(ctx, b))

	for i, spec := range []struct {
		owner    *entity.User
		category entity.Category
		amount   int64
	}{
		{a, entity.CategoryEquipment, 100},
		{a, entity.CategorySoftware, 5000},
		{b, entity.CategoryEquipment, 90000},
	} {
		require.NoError(t, requests.Create(ctx, &entity.Request{
			UserID: spec.owner.ID, DepartmentID: spec.owner.DepartmentID, Title: "r", Description: "d",
			Category: spec.category, Amount: spec.amount, Urgency: entity.UrgencyNormal,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	mine, err := requests.List(ctx, entity.RequestFilter{UserID: a.ID}, 50, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(5000), mine[0].Amount, "newest first")

	min := int64(1000)
	big, err := requests.List(ctx, entity.RequestFilter{Category: entity.CategoryEquipment, MinAmount: &min}, 50, 0)
	require.NoError(t, err)
	require.Len(t, big, 1)
	assert.Equal(t, b.ID, big[0].UserID)

	paged, err := requests.List(ctx, entity.RequestFilter{}, 1, 1)
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestRuleRepository_SeededAndCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewRuleRepository(setupDB(t), zap.NewNop())

	seeded, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, seeded, 3)
	assert.Equal(t, []entity.Role{entity.RoleApprover}, seeded[0].ApprovalSteps)
	assert.Nil(t, seeded[2].MaxAmount)
	assert.Nil(t, seeded[2].Category)

	software := entity.CategorySoftware
	max := int64(20000)
	rule := &entity.Rule{
		Name: "Cheap software", MinAmount: 0, MaxAmount: &max,
		ApprovalSteps: []entity.Role{entity.RoleDeptAdmin}, Category: &software, IsActive: true,
	}
	require.NoError(t, repo.Create(ctx, rule))

	rule.IsActive = false
	require.NoError(t, repo.Update(ctx, rule))

	active, err := repo.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	loaded, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Category)
	assert.Equal(t, software, *loaded.Category)
	assert.False(t, loaded.IsActive)

	require.NoError(t, repo.Delete(ctx, rule.ID))
	gone, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestNotificationRepository_RetryLifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	logger := zap.NewNop()

	user := &entity.User{Name: "N", Email: "n@example.com", Role: entity.RoleApprover}
	require.NoError(t, NewUserRepository(db, logger).Create(ctx, user))
	req := &entity.Request{UserID: user.ID, Title: "t", Description: "d", Category: entity.CategoryService, Urgency: entity.UrgencyNormal}
	require.NoError(t, NewRequestRepository(db, logger).Create(ctx, req))

	repo := NewNotificationRepository(db, logger)
	n := &entity.Notification{RequestID: req.ID, RecipientID: user.ID, EventType: "approval.requested"}
	require.NoError(t, repo.Create(ctx, n))

	require.NoError(t, repo.MarkFailed(ctx, n.ID, "timeout"))
	retry, err := repo.ListRetryable(ctx, 3, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, 1, retry[0].Attempts)
	assert.Equal(t, "timeout", retry[0].LastError)

	require.NoError(t, repo.MarkFailed(ctx, n.ID, "timeout"))
	require.NoError(t, repo.MarkFailed(ctx, n.ID, "timeout"))
	retry, err = repo.ListRetryable(ctx, 3, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, retry, "exhausted rows are not retried")

	require.NoError(t, repo.MarkSent(ctx, n.ID, time.Now()))
	loaded, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStatusSent, loaded.Status)
	assert.NotNil(t, loaded.SentAt)
}

func TestNotificationRepository_ListRetryableIncludesStalePending(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	logger := zap.NewNop()

	user := &entity.User{Name: "P", Email: "p@example.com", Role: entity.RoleRequester}
	require.NoError(t, NewUserRepository(db, logger).Create(ctx, user))
	req := &entity.Request{UserID: user.ID, Title: "t", Description: "d", Category: entity.CategoryService, Urgency: entity.UrgencyNormal}
	require.NoError(t, NewRequestRepository(db, logger).Create(ctx, req))

	repo := NewNotificationRepository(db, logger)
	n := &entity.Notification{RequestID: req.ID, RecipientID: user.ID, EventType: "request.submitted"}
	require.NoError(t, repo.Create(ctx, n))

	fresh, err := repo.ListRetryable(ctx, 3, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, fresh, "a recent pending row may still be in flight")

	stale, err := repo.ListRetryable(ctx, 3, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, n.ID, stale[0].ID)
	assert.Equal(t, entity.NotificationStatusPending, stale[0].Status)

	require.NoError(t, repo.MarkSent(ctx, n.ID, time.Now()))
	done, err := repo.ListRetryable(ctx, 3, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, done)
}
