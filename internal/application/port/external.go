package port

import (
	"context"

	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/event"
)

// Notice is one workflow event addressed to a set of users
type Notice struct {
	Type       event.Type
	Recipients []*entity.User
	Request    entity.Request
	Comment    string
}

// Notifier accepts notices after a workflow change commits.
// Delivery is asynchronous and its outcome never reaches the caller.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// Message is rendered notification content
type Message struct {
	Title string
	Body  string
}

// MessageSender delivers a rendered message to one user
type MessageSender interface {
	Send(ctx context.Context, recipient *entity.User, msg Message) error
	Name() string
}

// WorkflowMetrics records workflow outcomes
type WorkflowMetrics interface {
	OperationCompleted(operation, outcome string)
	TransitionRecorded(from, to string)
	NotificationDelivered(eventType, status string)
}
