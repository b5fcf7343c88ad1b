package entity

import "time"

// Rule configures which roles approve requests in an amount range
type Rule struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	MinAmount int64  `json:"min_amount"`
	// MaxAmount nil means unbounded
	MaxAmount     *int64    `json:"max_amount"`
	ApprovalSteps []Role    `json:"approval_steps"`
	Category      *Category `json:"category"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Covers reports whether amount lies within the rule's inclusive range
func (r *Rule) Covers(amount int64) bool {
	if amount < r.MinAmount {
		return false
	}
	return r.MaxAmount == nil || amount <= *r.MaxAmount
}

// AppliesTo reports whether the rule matches category. A nil rule category matches all.
func (r *Rule) AppliesTo(category Category) bool {
	return r.Category == nil || *r.Category == category
}
