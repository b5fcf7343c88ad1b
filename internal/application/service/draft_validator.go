package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// MaxAmount bounds Request.Amount
const MaxAmount int64 = 999999999

// DraftFields are the owner-editable fields of a request
type DraftFields struct {
	Title           string          `json:"title" validate:"required,max=255"`
	Description     string          `json:"description" validate:"required,max=5000"`
	Category        entity.Category `json:"category" validate:"required,oneof=EQUIPMENT SOFTWARE SERVICE TRAVEL"`
	Amount          int64           `json:"amount" validate:"min=0,max=999999999"`
	VendorName      string          `json:"vendor_name" validate:"max=255"`
	Urgency         entity.Urgency  `json:"urgency" validate:"required,oneof=NORMAL URGENT"`
	UrgencyReason   string          `json:"urgency_reason" validate:"max=1000"`
	TravelStartDate *time.Time      `json:"travel_start_date"`
	TravelEndDate   *time.Time      `json:"travel_end_date"`
}

// Apply copies the fields onto req
func (f DraftFields) Apply(req *entity.Request) {
	req.Title = strings.TrimSpace(f.Title)
	req.Description = f.Description
	req.Category = f.Category
	req.Amount = f.Amount
	req.VendorName = strings.TrimSpace(f.VendorName)
	req.Urgency = f.Urgency
	req.UrgencyReason = f.UrgencyReason
	req.TravelStartDate = f.TravelStartDate
	req.TravelEndDate = f.TravelEndDate
}

// DraftValidator checks DraftFields with go-playground/validator
type DraftValidator struct {
	validate *validatorv10.Validate
}

// NewDraftValidator returns a validator that reports fields by their JSON names
func NewDraftValidator() *DraftValidator {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(draftStructValidation, DraftFields{})
	return &DraftValidator{validate: v}
}

func draftStructValidation(sl validatorv10.StructLevel) {
	f := sl.Current().Interface().(DraftFields)
	if f.TravelStartDate != nil && f.TravelEndDate != nil && f.TravelEndDate.Before(*f.TravelStartDate) {
		sl.ReportError(f.TravelEndDate, "travel_end_date", "TravelEndDate", "gtefield", "travel_start_date")
	}
}

// Validate returns a *workflow.ValidationError listing every failed field, or nil
func (v *DraftValidator) Validate(f DraftFields) error {
	err := v.validate.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validatorv10.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate draft: %w", err)
	}

	violations := make([]workflow.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, workflow.Violation{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return workflow.NewValidationError(violations)
}

func messageFor(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "gtefield":
		return "must not be before " + fe.Param()
	default:
		return "is invalid"
	}
}
