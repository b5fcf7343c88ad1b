package rule

import (
	"strings"
	"time"

	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// CategoryFields are the request fields whose requirements depend on category or urgency
type CategoryFields struct {
	Category      entity.Category
	VendorName    string
	TravelStart   *time.Time
	TravelEnd     *time.Time
	Urgency       entity.Urgency
	UrgencyReason string
}

// FieldsOf extracts the category-dependent fields of req
func FieldsOf(req *entity.Request) CategoryFields {
	return CategoryFields{
		Category:      req.Category,
		VendorName:    req.VendorName,
		TravelStart:   req.TravelStartDate,
		TravelEnd:     req.TravelEndDate,
		Urgency:       req.Urgency,
		UrgencyReason: req.UrgencyReason,
	}
}

// ValidateCategory returns every violated rule. An empty result means the fields are valid.
func ValidateCategory(f CategoryFields) []workflow.Violation {
	var violations []workflow.Violation

	if f.Category == entity.CategorySoftware && strings.TrimSpace(f.VendorName) == "" {
		violations = append(violations, workflow.Violation{
			Field:   "vendor_name",
			Message: "vendor name is required for software purchases",
		})
	}

	if f.Category == entity.CategoryTravel {
		if f.TravelStart == nil {
			violations = append(violations, workflow.Violation{
				Field:   "travel_start_date",
				Message: "travel start date is required for travel requests",
			})
		}
		if f.TravelEnd == nil {
			violations = append(violations, workflow.Violation{
				Field:   "travel_end_date",
				Message: "travel end date is required for travel requests",
			})
		}
		if f.TravelStart != nil && f.TravelEnd != nil && f.TravelEnd.Before(*f.TravelStart) {
			violations = append(violations, workflow.Violation{
				Field:   "travel_end_date",
				Message: "travel end date must not be before the start date",
			})
		}
	}

	if f.Urgency == entity.UrgencyUrgent && strings.TrimSpace(f.UrgencyReason) == "" {
		violations = append(violations, workflow.Violation{
			Field:   "urgency_reason",
			Message: "urgency reason is required for urgent requests",
		})
	}

	return violations
}

// MaxRuleNameLength bounds Rule.Name
const MaxRuleNameLength = 255

// ValidateDefinition checks a rule before it is stored
func ValidateDefinition(r *entity.Rule) []workflow.Violation {
	var violations []workflow.Violation

	name := strings.TrimSpace(r.Name)
	switch {
	case name == "":
		violations = append(violations, workflow.Violation{Field: "name", Message: "name is required"})
	case len(name) > MaxRuleNameLength:
		violations = append(violations, workflow.Violation{Field: "name", Message: "name must be at most 255 characters"})
	}

	if r.MinAmount < 0 {
		violations = append(violations, workflow.Violation{Field: "min_amount", Message: "min amount must not be negative"})
	}
	if r.MaxAmount != nil && *r.MaxAmount <= r.MinAmount {
		violations = append(violations, workflow.Violation{Field: "max_amount", Message: "max amount must be greater than min amount"})
	}

	if len(r.ApprovalSteps) == 0 {
		violations = append(violations, workflow.Violation{Field: "approval_steps", Message: "at least one approval step is required"})
	}
	for _, role := range r.ApprovalSteps {
		if !role.CanApprove() {
			violations = append(violations, workflow.Violation{
				Field:   "approval_steps",
				Message: "unknown approver role " + string(role),
			})
		}
	}

	if r.Category != nil && !r.Category.IsValid() {
		violations = append(violations, workflow.Violation{Field: "category", Message: "unknown category " + string(*r.Category)})
	}

	return violations
}
