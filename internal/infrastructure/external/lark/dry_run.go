package lark

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
)

// DryRunMessenger logs messages instead of sending them. It is used when no
// Lark app is configured.
type DryRunMessenger struct {
	logger *zap.Logger
}

// NewDryRunMessenger creates a sender that only logs
func NewDryRunMessenger(logger *zap.Logger) *DryRunMessenger {
	return &DryRunMessenger{logger: logger}
}

// Name identifies the sender in logs
func (m *DryRunMessenger) Name() string {
	return "lark-dry-run"
}

// Send logs msg and always succeeds
func (m *DryRunMessenger) Send(_ context.Context, recipient *entity.User, msg port.Message) error {
	idType, id := receiverOf(recipient)
	m.logger.Info("Dry run: message not sent",
		zap.Int64("user_id", recipient.ID),
		zap.String("receive_id_type", idType),
		zap.String("receive_id", id),
		zap.String("title", msg.Title),
		zap.Int("body_length", len(msg.Body)))
	return nil
}

var _ port.MessageSender = (*DryRunMessenger)(nil)
