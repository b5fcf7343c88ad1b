package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/purchase-approval/pkg/database"
	"github.com/garyjia/purchase-approval/pkg/utils"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []port.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice port.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) all() []port.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]port.Notice(nil), n.notices...)
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = nil
}

type recordingMetrics struct {
	mu          sync.Mutex
	outcomes    map[string]int
	transitions map[string]int
	deliveries  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		outcomes:    map[string]int{},
		transitions: map[string]int{},
		deliveries:  map[string]int{},
	}
}

func (m *recordingMetrics) OperationCompleted(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[op+"/"+outcome]++
}

func (m *recordingMetrics) TransitionRecorded(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[from+"->"+to]++
}

func (m *recordingMetrics) NotificationDelivered(eventType, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[eventType+"/"+status]++
}

// failingAudits fails Append for entries whose action matches failOn
type failingAudits struct {
	port.AuditLogRepository
	failOn string
}

func (f *failingAudits) Append(ctx context.Context, log *entity.AuditLog) error {
	if log.Action == f.failOn {
		return errAuditDown
	}
	return f.AuditLogRepository.Append(ctx, log)
}

type testError string

func (e testError) Error() string { return string(e) }

const errAuditDown = testError("audit store unavailable")

type harness struct {
	t         *testing.T
	ctx       context.Context
	tx        *sqlite.DB
	repos     Repositories
	notifier  *recordingNotifier
	metrics   *recordingMetrics
	approvals ApprovalService
	requests  RequestService
	audits    AuditService
	rules     RuleService

	requester  *entity.User
	other      *entity.User
	approver   *entity.User
	deptAdmin  *entity.User
	superAdmin *entity.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "workflow.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run(database.Migrations()))

	repos := Repositories{
		Requests:      repository.NewRequestRepository(db.DB, logger),
		Steps:         repository.NewApprovalStepRepository(db.DB, logger),
		AuditLogs:     repository.NewAuditLogRepository(db.DB, logger),
		Rules:         repository.NewRuleRepository(db.DB, logger),
		Users:         repository.NewUserRepository(db.DB, logger),
		Notifications: repository.NewNotificationRepository(db.DB, logger),
	}

	h := &harness{
		t:        t,
		ctx:      context.Background(),
		tx:       sqlite.NewDB(db.DB, logger),
		repos:    repos,
		notifier: &recordingNotifier{},
		metrics:  newRecordingMetrics(),
	}
	h.wire(repos)

	h.requester = h.user("Rita Requester", entity.RoleRequester)
	h.other = h.user("Oscar Other", entity.RoleRequester)
	h.approver = h.user("Ava Approver", entity.RoleApprover)
	h.deptAdmin = h.user("Dan Dept", entity.RoleDeptAdmin)
	h.superAdmin = h.user("Sue Super", entity.RoleSuperAdmin)
	return h
}

// wire rebuilds the services over repos, letting tests swap a repository
func (h *harness) wire(repos Repositories) {
	kv := utils.NewKVLogger(zap.NewNop())
	machine := NewStateMachine(repos.Requests, repos.AuditLogs)
	h.approvals = NewApprovalService(repos, h.tx, machine, h.notifier, h.metrics, kv)
	h.requests = NewRequestService(repos, h.tx, machine, h.metrics, kv)
	h.audits = NewAuditService(repos.Requests, repos.AuditLogs, repos.Users, kv)
	h.rules = NewRuleService(repos.Rules, kv)
}

func (h *harness) user(name string, role entity.Role) *entity.User {
	h.t.Helper()
	u := &entity.User{Name: name, Email: name + "@example.com", Role: role, DepartmentID: 1}
	require.NoError(h.t, h.repos.Users.Create(h.ctx, u))
	return u
}

func equipmentDraft(amount int64) DraftFields {
	return DraftFields{
		Title:       "Laptops",
		Description: "Replacement laptops for the support team",
		Category:    entity.CategoryEquipment,
		Amount:      amount,
		Urgency:     entity.UrgencyNormal,
	}
}

func (h *harness) draft(fields DraftFields) *entity.Request {
	h.t.Helper()
	req, err := h.requests.CreateDraft(h.ctx, h.requester, 1, fields)
	require.NoError(h.t, err)
	return req
}

func (h *harness) submitted(amount int64) *entity.Request {
	h.t.Helper()
	req := h.draft(equipmentDraft(amount))
	require.NoError(h.t, h.approvals.Submit(h.ctx, req, h.requester))
	return req
}

func (h *harness) reload(id int64) *entity.Request {
	h.t.Helper()
	req, err := h.requests.Get(h.ctx, id)
	require.NoError(h.t, err)
	return req
}

func (h *harness) trail(id int64) []*entity.AuditLog {
	h.t.Helper()
	logs, err := h.audits.Trail(h.ctx, id)
	require.NoError(h.t, err)
	return logs
}

func (h *harness) stepsOf(id int64) []*entity.ApprovalStep {
	h.t.Helper()
	steps, err := h.approvals.Steps(h.ctx, id)
	require.NoError(h.t, err)
	return steps
}

func statuses(steps []*entity.ApprovalStep) []workflow.StepStatus {
	out := make([]workflow.StepStatus, len(steps))
	for i, s := range steps {
		out[i] = s.Status
	}
	return out
}

func actions(logs []*entity.AuditLog) []string {
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Action
	}
	return out
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
