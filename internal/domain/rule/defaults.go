package rule

import "github.com/garyjia/purchase-approval/internal/domain/entity"

// DefaultRules mirrors the built-in tiers as configurable rules. The seed migration inserts the same rows.
func DefaultRules() []*entity.Rule {
	small, medium := SmallAmountLimit, MediumAmountLimit
	return []*entity.Rule{
		{
			Name:          "Small Amount Approval",
			MinAmount:     0,
			MaxAmount:     &small,
			ApprovalSteps: DetermineApprovalSteps(0),
			IsActive:      true,
		},
		{
			Name:          "Medium Amount Approval",
			MinAmount:     SmallAmountLimit + 1,
			MaxAmount:     &medium,
			ApprovalSteps: DetermineApprovalSteps(MediumAmountLimit),
			IsActive:      true,
		},
		{
			Name:          "Large Amount Approval",
			MinAmount:     MediumAmountLimit + 1,
			ApprovalSteps: DetermineApprovalSteps(MediumAmountLimit + 1),
			IsActive:      true,
		},
	}
}
