package entity

import "time"

// User is an account that owns requests or acts on approval steps
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	DepartmentID int64     `json:"department_id"`
	LarkOpenID   string    `json:"lark_open_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
