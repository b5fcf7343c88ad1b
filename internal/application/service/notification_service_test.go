package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/dispatcher"
	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/event"
	"github.com/garyjia/purchase-approval/pkg/utils"
)

type sentMessage struct {
	recipient int64
	msg       port.Message
}

type fakeSender struct {
	mu   sync.Mutex
	fail error
	sent []sentMessage
}

func (s *fakeSender) Send(_ context.Context, recipient *entity.User, msg port.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, sentMessage{recipient: recipient.ID, msg: msg})
	return nil
}

func (s *fakeSender) Name() string { return "fake" }

func (s *fakeSender) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *fakeSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func newNotificationService(h *harness, sender port.MessageSender) (NotificationService, dispatcher.Dispatcher) {
	kv := utils.NewKVLogger(zap.NewNop())
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))
	svc := NewNotificationService(h.repos, d, sender, h.metrics, 3, kv)
	svc.RegisterHandlers(d)

	machine := NewStateMachine(h.repos.Requests, h.repos.AuditLogs)
	h.approvals = NewApprovalService(h.repos, h.tx, machine, svc, h.metrics, kv)
	return svc, d
}

func TestNotificationService_DeliversAfterSubmit(t *testing.T) {
	h := newHarness(t)
	sender := &fakeSender{}
	_, d := newNotificationService(h, sender)

	for _, typ := range event.AllTypes() {
		assert.Equal(t, 1, d.HandlerCount(typ))
	}

	ctx := event.WithCorrelationID(h.ctx, "req-abc")
	req := h.draft(equipmentDraft(1000))
	require.NoError(t, h.approvals.Submit(ctx, req, h.requester))
	require.NoError(t, d.Close())

	msgs := sender.messages()
	require.Len(t, msgs, 2)

	byRecipient := map[int64]port.Message{}
	for _, m := range msgs {
		byRecipient[m.recipient] = m.msg
	}
	assert.Contains(t, byRecipient[h.requester.ID].Title, "submitted")
	assert.Contains(t, byRecipient[h.approver.ID].Title, "Approval needed")
	assert.Contains(t, byRecipient[h.approver.ID].Body, "Laptops")

	assert.Equal(t, 1, h.metrics.deliveries["request.submitted/SENT"])
	assert.Equal(t, 1, h.metrics.deliveries["approval.requested/SENT"])
}

func TestNotificationService_FailureDoesNotAffectWorkflow(t *testing.T) {
	h := newHarness(t)
	sender := &fakeSender{}
	sender.setFail(errors.New("lark unavailable"))
	svc, d := newNotificationService(h, sender)

	req := h.submitted(1000)
	require.NoError(t, h.approvals.Reject(h.ctx, req, h.approver, "Not needed"))
	require.NoError(t, d.Close())

	assert.Equal(t, "REJECTED", string(h.reload(req.ID).Status))
	assert.Empty(t, sender.messages())
	assert.Equal(t, 1, h.metrics.deliveries["request.rejected/FAILED"])

	retryable, err := h.repos.Notifications.ListRetryable(h.ctx, 3, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, retryable, 3)
	for _, n := range retryable {
		assert.Equal(t, entity.NotificationStatusFailed, n.Status)
		assert.Equal(t, 1, n.Attempts)
		assert.Equal(t, "lark unavailable", n.LastError)
	}

	sender.setFail(nil)
	sent, err := svc.RetryFailed(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	msgs := sender.messages()
	require.Len(t, msgs, 3)
	var rejected *port.Message
	for i := range msgs {
		if msgs[i].recipient == h.requester.ID && msgs[i].msg.Title == "Request #1 rejected" {
			rejected = &msgs[i].msg
		}
	}
	require.NotNil(t, rejected)
	assert.Contains(t, rejected.Body, "Comment: Not needed")

	retryable, err = h.repos.Notifications.ListRetryable(h.ctx, 3, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, retryable)

	require.NoError(t, svc.Deliver(h.ctx, msgsNotificationID(t, h, 1)))
	assert.Len(t, sender.messages(), 3, "sent rows are not delivered twice")
}

func TestNotificationService_RetryStopsAtMaxAttempts(t *testing.T) {
	h := newHarness(t)
	sender := &fakeSender{}
	sender.setFail(errors.New("down"))
	svc, d := newNotificationService(h, sender)

	h.submitted(1000)
	require.NoError(t, d.Close())

	for i := 0; i < 5; i++ {
		sent, err := svc.RetryFailed(h.ctx, 10)
		require.NoError(t, err)
		assert.Zero(t, sent)
	}

	n, err := h.repos.Notifications.GetByID(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n.Attempts)
	assert.Equal(t, entity.NotificationStatusFailed, n.Status)
}

func TestNotificationService_RetryRecoversStrandedPending(t *testing.T) {
	h := newHarness(t)
	req := h.submitted(1000)

	// an outbox row whose async delivery never ran
	stranded := &entity.Notification{RequestID: req.ID, RecipientID: h.requester.ID, EventType: string(event.TypeRequestSubmitted)}
	require.NoError(t, h.repos.Notifications.Create(h.ctx, stranded))

	sender := &fakeSender{}
	kv := utils.NewKVLogger(zap.NewNop())
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))
	defer d.Close()

	patient := NewNotificationService(h.repos, d, sender, h.metrics, 3, kv)
	sent, err := patient.RetryFailed(h.ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, sent, "rows inside the grace period are left to the async path")

	eager := NewNotificationService(h.repos, d, sender, h.metrics, 3, kv, WithPendingGrace(time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	sent, err = eager.RetryFailed(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	n, err := h.repos.Notifications.GetByID(h.ctx, stranded.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStatusSent, n.Status)
	assert.Equal(t, 1, n.Attempts)
	require.Len(t, sender.messages(), 1)
	assert.Equal(t, h.requester.ID, sender.messages()[0].recipient)
}

func TestNotificationService_DeliverUnknown(t *testing.T) {
	h := newHarness(t)
	svc, d := newNotificationService(h, &fakeSender{})
	defer d.Close()

	assert.Error(t, svc.Deliver(h.ctx, 404))
}

func TestRenderMessage(t *testing.T) {
	req := &entity.Request{
		ID: 9, Title: "Licences", Category: entity.CategorySoftware, Amount: 1200,
		Urgency: entity.UrgencyUrgent, UrgencyReason: "audit deadline",
	}
	approver := &entity.User{Name: "Ava", Role: entity.RoleApprover}

	for _, typ := range event.AllTypes() {
		msg, err := renderMessage(typ, req, approver, "")
		require.NoError(t, err, typ)
		assert.Contains(t, msg.Title, "#9")
		assert.Contains(t, msg.Body, "Hi Ava")
		assert.Contains(t, msg.Body, "Urgent: audit deadline")
		assert.NotContains(t, msg.Body, "Comment:")
	}

	msg, err := renderMessage(event.TypeRequestReturned, req, approver, "add a quote")
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Comment: add a quote")

	_, err = renderMessage("request.deleted", req, approver, "")
	assert.Error(t, err)
}

func msgsNotificationID(t *testing.T, h *harness, id int64) int64 {
	t.Helper()
	n, err := h.repos.Notifications.GetByID(h.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, n)
	require.Equal(t, entity.NotificationStatusSent, n.Status)
	return n.ID
}
