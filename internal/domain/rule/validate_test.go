package rule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

func fields(vs []workflow.Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Field)
	}
	return out
}

func TestValidateCategory(t *testing.T) {
	start := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)
	before := start.AddDate(0, 0, -1)

	tests := []struct {
		name string
		in   CategoryFields
		want []string
	}{
		{"equipment normal", CategoryFields{Category: entity.CategoryEquipment, Urgency: entity.UrgencyNormal}, []string{}},
		{"software without vendor", CategoryFields{Category: entity.CategorySoftware, Urgency: entity.UrgencyNormal}, []string{"vendor_name"}},
		{"software blank vendor", CategoryFields{Category: entity.CategorySoftware, VendorName: "  ", Urgency: entity.UrgencyNormal}, []string{"vendor_name"}},
		{"software with vendor", CategoryFields{Category: entity.CategorySoftware, VendorName: "JetBrains", Urgency: entity.UrgencyNormal}, []string{}},
		{"travel missing dates", CategoryFields{Category: entity.CategoryTravel, Urgency: entity.UrgencyNormal}, []string{"travel_start_date", "travel_end_date"}},
		{"travel with dates", CategoryFields{Category: entity.CategoryTravel, TravelStart: &start, TravelEnd: &end, Urgency: entity.UrgencyNormal}, []string{}},
		{"travel same day", CategoryFields{Category: entity.CategoryTravel, TravelStart: &start, TravelEnd: &start, Urgency: entity.UrgencyNormal}, []string{}},
		{"travel end before start", CategoryFields{Category: entity.CategoryTravel, TravelStart: &start, TravelEnd: &before, Urgency: entity.UrgencyNormal}, []string{"travel_end_date"}},
		{"urgent without reason", CategoryFields{Category: entity.CategoryService, Urgency: entity.UrgencyUrgent}, []string{"urgency_reason"}},
		{"urgent with reason", CategoryFields{Category: entity.CategoryService, Urgency: entity.UrgencyUrgent, UrgencyReason: "server down"}, []string{}},
		{"all problems at once", CategoryFields{Category: entity.CategorySoftware, Urgency: entity.UrgencyUrgent}, []string{"vendor_name", "urgency_reason"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fields(ValidateCategory(tt.in)))
		})
	}
}

func TestValidateDefinition(t *testing.T) {
	max := int64(100)
	low := int64(10)
	bogus := entity.Category("FOOD")

	valid := &entity.Rule{Name: "Small", MinAmount: 0, MaxAmount: &max, ApprovalSteps: []entity.Role{entity.RoleApprover}}
	assert.Empty(t, ValidateDefinition(valid))

	tests := []struct {
		name string
		rule *entity.Rule
		want string
	}{
		{"blank name", &entity.Rule{Name: " ", ApprovalSteps: []entity.Role{entity.RoleApprover}}, "name"},
		{"long name", &entity.Rule{Name: strings.Repeat("x", 256), ApprovalSteps: []entity.Role{entity.RoleApprover}}, "name"},
		{"negative min", &entity.Rule{Name: "n", MinAmount: -1, ApprovalSteps: []entity.Role{entity.RoleApprover}}, "min_amount"},
		{"max not above min", &entity.Rule{Name: "n", MinAmount: 10, MaxAmount: &low, ApprovalSteps: []entity.Role{entity.RoleApprover}}, "max_amount"},
		{"no steps", &entity.Rule{Name: "n"}, "approval_steps"},
		{"requester step", &entity.Rule{Name: "n", ApprovalSteps: []entity.Role{entity.RoleRequester}}, "approval_steps"},
		{"unknown category", &entity.Rule{Name: "n", ApprovalSteps: []entity.Role{entity.RoleApprover}, Category: &bogus}, "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, fields(ValidateDefinition(tt.rule)), tt.want)
		})
	}
}
