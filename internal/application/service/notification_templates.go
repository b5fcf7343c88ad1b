package service

import (
	"fmt"
	"strings"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/event"
)

// renderMessage builds the message for one notification
func renderMessage(typ event.Type, req *entity.Request, recipient *entity.User, comment string) (port.Message, error) {
	var title, lead string
	switch typ {
	case event.TypeRequestSubmitted:
		title = fmt.Sprintf("Request #%d submitted", req.ID)
		lead = "Your purchase request was submitted and is waiting for approval."
	case event.TypeApprovalRequested:
		title = fmt.Sprintf("Approval needed: request #%d", req.ID)
		lead = fmt.Sprintf("A purchase request is waiting for a decision from the %s role.", recipient.Role)
	case event.TypeRequestApproved:
		title = fmt.Sprintf("Request #%d approved", req.ID)
		lead = "Your purchase request passed every approval step."
	case event.TypeRequestRejected:
		title = fmt.Sprintf("Request #%d rejected", req.ID)
		lead = "Your purchase request was rejected."
	case event.TypeRequestReturned:
		title = fmt.Sprintf("Request #%d returned", req.ID)
		lead = "Your purchase request was returned for changes. Edit it and resubmit."
	default:
		return port.Message{}, fmt.Errorf("no template for event type %q", typ)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n%s\n\n", recipient.Name, lead)
	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	fmt.Fprintf(&b, "Category: %s\n", req.Category)
	fmt.Fprintf(&b, "Amount: %d\n", req.Amount)
	if req.Urgency == entity.UrgencyUrgent {
		fmt.Fprintf(&b, "Urgent: %s\n", req.UrgencyReason)
	}
	if comment != "" {
		fmt.Fprintf(&b, "\nComment: %s\n", comment)
	}

	return port.Message{Title: title, Body: b.String()}, nil
}
