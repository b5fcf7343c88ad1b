package entity

import (
	"time"

	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// AuditLog is an immutable record of one transition or in-place decision
type AuditLog struct {
	ID         int64                  `json:"id"`
	RequestID  int64                  `json:"request_id"`
	UserID     int64                  `json:"user_id"`
	Action     string                 `json:"action"`
	FromStatus *workflow.State        `json:"from_status"`
	ToStatus   workflow.State         `json:"to_status"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}
