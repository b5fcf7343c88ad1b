package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/purchase-approval/internal/application/dispatcher"
	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/event"
)

// DefaultMaxAttempts bounds delivery attempts per notification
const DefaultMaxAttempts = 5

// DefaultPendingGrace is how long a PENDING row may wait for its first
// delivery before the retry pass picks it up
const DefaultPendingGrace = 2 * time.Minute

// NotificationService writes the notification outbox and delivers its rows
type NotificationService interface {
	port.Notifier

	// Deliver sends one outbox row. Rows already SENT are skipped.
	Deliver(ctx context.Context, notificationID int64) error
	// RetryFailed redelivers FAILED rows that have attempts left and PENDING rows
	// older than the grace period, and returns how many were sent
	RetryFailed(ctx context.Context, limit int) (int, error)
	// RegisterHandlers subscribes delivery to every notification event
	RegisterHandlers(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	requests      port.RequestRepository
	users         port.UserRepository
	notifications port.NotificationRepository
	dispatcher    dispatcher.Dispatcher
	sender        port.MessageSender
	metrics       port.WorkflowMetrics
	maxAttempts   int
	pendingGrace  time.Duration
	logger        Logger
}

// NotificationOption configures the notification service
type NotificationOption func(*notificationServiceImpl)

// WithPendingGrace sets how old a PENDING row must be before RetryFailed redelivers it
func WithPendingGrace(grace time.Duration) NotificationOption {
	return func(s *notificationServiceImpl) {
		if grace > 0 {
			s.pendingGrace = grace
		}
	}
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	repos Repositories,
	d dispatcher.Dispatcher,
	sender port.MessageSender,
	metrics port.WorkflowMetrics,
	maxAttempts int,
	logger Logger,
	opts ...NotificationOption,
) NotificationService {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	s := &notificationServiceImpl{
		requests:      repos.Requests,
		users:         repos.Users,
		notifications: repos.Notifications,
		dispatcher:    d,
		sender:        sender,
		metrics:       metrics,
		maxAttempts:   maxAttempts,
		pendingGrace:  DefaultPendingGrace,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify records one outbox row per recipient and hands each to the dispatcher.
// It never fails the caller; problems are logged.
func (s *notificationServiceImpl) Notify(ctx context.Context, notice port.Notice) {
	correlationID := event.CorrelationIDFrom(ctx)

	for _, recipient := range notice.Recipients {
		n := &entity.Notification{
			RequestID:   notice.Request.ID,
			RecipientID: recipient.ID,
			EventType:   notice.Type.String(),
			Comment:     notice.Comment,
		}
		if err := s.notifications.Create(ctx, n); err != nil {
			s.logger.Error("Failed to queue notification",
				"request_id", notice.Request.ID,
				"recipient_id", recipient.ID,
				"event_type", notice.Type,
				"error", err,
			)
			continue
		}

		evt := event.NewEventWithCorrelation(notice.Type, notice.Request.ID, map[string]interface{}{
			event.PayloadNotificationID: n.ID,
			event.PayloadRecipientID:    recipient.ID,
			event.PayloadComment:        notice.Comment,
		}, correlationID)
		s.dispatcher.DispatchAsync(ctx, evt)
	}
}

func (s *notificationServiceImpl) RegisterHandlers(d dispatcher.Dispatcher) {
	d.SubscribeAll(event.AllTypes(), "notification_delivery", s.handle)
}

func (s *notificationServiceImpl) handle(ctx context.Context, evt *event.Event) error {
	id := evt.GetPayloadInt(event.PayloadNotificationID)
	if id == 0 {
		return fmt.Errorf("event %s carries no notification id", evt.ID)
	}
	return s.Deliver(ctx, id)
}

func (s *notificationServiceImpl) Deliver(ctx context.Context, notificationID int64) error {
	n, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return fmt.Errorf("notification %d not found", notificationID)
	}
	if n.Status == entity.NotificationStatusSent {
		return nil
	}

	if err := s.send(ctx, n); err != nil {
		if markErr := s.notifications.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark notification failed", "notification_id", n.ID, "error", markErr)
		}
		s.metrics.NotificationDelivered(n.EventType, entity.NotificationStatusFailed)
		s.logger.Error("Notification delivery failed",
			"notification_id", n.ID,
			"request_id", n.RequestID,
			"recipient_id", n.RecipientID,
			"attempt", n.Attempts+1,
			"error", err,
		)
		return err
	}

	if err := s.notifications.MarkSent(ctx, n.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	s.metrics.NotificationDelivered(n.EventType, entity.NotificationStatusSent)
	s.logger.Info("Notification delivered",
		"notification_id", n.ID,
		"request_id", n.RequestID,
		"recipient_id", n.RecipientID,
		"event_type", n.EventType,
		"sender", s.sender.Name(),
	)
	return nil
}

func (s *notificationServiceImpl) send(ctx context.Context, n *entity.Notification) error {
	recipient, err := s.users.GetByID(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if recipient == nil {
		return fmt.Errorf("recipient %d not found", n.RecipientID)
	}

	req, err := s.requests.GetByID(ctx, n.RequestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("request %d not found", n.RequestID)
	}

	msg, err := renderMessage(event.Type(n.EventType), req, recipient, n.Comment)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, recipient, msg)
}

func (s *notificationServiceImpl) RetryFailed(ctx context.Context, limit int) (int, error) {
	staleBefore := time.Now().UTC().Add(-s.pendingGrace)
	pending, err := s.notifications.ListRetryable(ctx, s.maxAttempts, staleBefore, limit)
	if err != nil {
		return 0, fmt.Errorf("list retryable notifications: %w", err)
	}

	sent := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := s.Deliver(ctx, n.ID); err == nil {
			sent++
		}
	}

	if len(pending) > 0 {
		s.logger.Info("Notification retry pass finished", "candidates", len(pending), "sent", sent)
	}
	return sent, nil
}
