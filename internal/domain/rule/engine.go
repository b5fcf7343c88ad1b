// Package rule decides which roles must approve a purchase request and
// checks the category-specific fields a request needs before submission.
package rule

import (
	"github.com/garyjia/purchase-approval/internal/domain/entity"
)

// Tier thresholds used when no configured rule matches
const (
	SmallAmountLimit  int64 = 100000
	MediumAmountLimit int64 = 500000
)

// DetermineApprovalSteps returns the ordered approver roles for amount using the built-in tiers
func DetermineApprovalSteps(amount int64) []entity.Role {
	switch {
	case amount <= SmallAmountLimit:
		return []entity.Role{entity.RoleApprover}
	case amount <= MediumAmountLimit:
		return []entity.Role{entity.RoleApprover, entity.RoleDeptAdmin}
	default:
		return []entity.Role{entity.RoleApprover, entity.RoleDeptAdmin, entity.RoleSuperAdmin}
	}
}

// Resolution is the outcome of step selection
type Resolution struct {
	Roles []entity.Role
	// RuleID is the configured rule that produced Roles, nil when the built-in tiers were used
	RuleID *int64
}

// StepsFor picks the best matching active rule for amount and category.
// Category-specific rules win over generic ones, then the narrowest range,
// then the lowest ID. With no match it falls back to DetermineApprovalSteps.
func StepsFor(rules []*entity.Rule, amount int64, category entity.Category) Resolution {
	var best *entity.Rule
	for _, r := range rules {
		if r == nil || !r.IsActive || len(r.ApprovalSteps) == 0 {
			continue
		}
		if !r.Covers(amount) || !r.AppliesTo(category) {
			continue
		}
		if best == nil || preferred(r, best) {
			best = r
		}
	}

	if best == nil {
		return Resolution{Roles: DetermineApprovalSteps(amount)}
	}

	id := best.ID
	return Resolution{
		Roles:  append([]entity.Role(nil), best.ApprovalSteps...),
		RuleID: &id,
	}
}

// preferred reports whether a should be chosen over b
func preferred(a, b *entity.Rule) bool {
	aSpecific, bSpecific := a.Category != nil, b.Category != nil
	if aSpecific != bSpecific {
		return aSpecific
	}

	aWidth, aBounded := width(a)
	bWidth, bBounded := width(b)
	switch {
	case aBounded && !bBounded:
		return true
	case !aBounded && bBounded:
		return false
	case aBounded && bBounded && aWidth != bWidth:
		return aWidth < bWidth
	}

	return a.ID < b.ID
}

func width(r *entity.Rule) (int64, bool) {
	if r.MaxAmount == nil {
		return 0, false
	}
	return *r.MaxAmount - r.MinAmount, true
}
