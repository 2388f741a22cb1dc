package expense

import (
	"strings"

	"github.com/frahmantamala/expense-reporting/internal"
)

type Status string

const (
	StatusDraft               Status = "DRAFT"
	StatusSubmitted           Status = "SUBMITTED"
	StatusManagerApproved     Status = "MANAGER_APPROVED"
	StatusManagerRejected     Status = "MANAGER_REJECTED"
	StatusAccountingValidated Status = "ACCOUNTING_VALIDATED"
	StatusAccountingRejected  Status = "ACCOUNTING_REJECTED"
	StatusDetailsRequested    Status = "DETAILS_REQUESTED"
	StatusPaid                Status = "PAID"
)

// AllStatuses lists every value current_status may hold.
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusManagerApproved,
	StatusManagerRejected,
	StatusAccountingValidated,
	StatusAccountingRejected,
	StatusDetailsRequested,
	StatusPaid,
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", internal.NewValidationFieldError("status", "unknown status: "+raw, internal.ErrCodeInvalidStatus)
}

// Terminal statuses accept no further moves.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusManagerRejected, StatusAccountingRejected:
		return true
	}
	return false
}

// Rejected reports the two rejection outcomes.
func (s Status) Rejected() bool {
	return s == StatusManagerRejected || s == StatusAccountingRejected
}

type Action string

const (
	ActionApprove        Action = "APPROVE"
	ActionReject         Action = "REJECT"
	ActionRequestDetails Action = "REQUEST_DETAILS"
	ActionPay            Action = "PAY"
)

var AllActions = []Action{ActionApprove, ActionReject, ActionRequestDetails, ActionPay}

// ParseAction accepts any casing and surrounding whitespace.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllActions {
		if a == known {
			return a, nil
		}
	}
	return "", internal.NewValidationFieldError("action", "unknown action: "+raw, internal.ErrCodeInvalidAction)
}

// RequiresComment is true for actions that must carry a reason.
func (a Action) RequiresComment() bool {
	return a == ActionReject || a == ActionRequestDetails
}

type StepType string

const (
	StepTypeManager    StepType = "MANAGER"
	StepTypeAccounting StepType = "ACCOUNTING"
)

// StepStatusResubmit is recorded when an owner answers a details request.
const StepStatusResubmit = "RESUBMIT"
