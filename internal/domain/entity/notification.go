package entity

import "time"

// Notification is an outbox record for one message to one recipient
type Notification struct {
	ID          int64      `json:"id"`
	RequestID   int64      `json:"request_id"`
	RecipientID int64      `json:"recipient_id"`
	EventType   string     `json:"event_type"`
	Comment     string     `json:"comment,omitempty"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
