package expense

import (
	"strings"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
)

// Branch names the reviewer path a rule belongs to. Branches are tried in
// declaration order.
type Branch string

const (
	BranchManager    Branch = "MANAGER"
	BranchAccounting Branch = "ACCOUNTING"
	BranchLegacy     Branch = "LEGACY"
)

var branchOrder = []Branch{BranchManager, BranchAccounting, BranchLegacy}

type Rule struct {
	Branch Branch
	From   Status
	Action Action
	To     Status
}

type ruleKey struct {
	branch Branch
	from   Status
	action Action
}

// Rules is the complete reviewer transition table.
var Rules = []Rule{
	{BranchManager, StatusSubmitted, ActionApprove, StatusManagerApproved},
	{BranchManager, StatusSubmitted, ActionReject, StatusManagerRejected},
	{BranchManager, StatusSubmitted, ActionRequestDetails, StatusDetailsRequested},

	{BranchAccounting, StatusManagerApproved, ActionPay, StatusPaid},
	{BranchAccounting, StatusManagerApproved, ActionReject, StatusAccountingRejected},
	{BranchAccounting, StatusManagerApproved, ActionRequestDetails, StatusDetailsRequested},
	{BranchAccounting, StatusSubmitted, ActionPay, StatusPaid},
	{BranchAccounting, StatusSubmitted, ActionReject, StatusAccountingRejected},
	{BranchAccounting, StatusSubmitted, ActionRequestDetails, StatusDetailsRequested},

	{BranchLegacy, StatusAccountingValidated, ActionPay, StatusPaid},
}

var ruleIndex = func() map[ruleKey]Status {
	idx := make(map[ruleKey]Status, len(Rules))
	for _, r := range Rules {
		idx[ruleKey{r.Branch, r.From, r.Action}] = r.To
	}
	return idx
}()

// OwnerMoves are the transitions only the report owner may make.
var OwnerMoves = map[Status]Status{
	StatusDraft:            StatusSubmitted,
	StatusDetailsRequested: StatusSubmitted,
}

type TransitionInput struct {
	Current        Status
	Actor          *auth.Session
	OwnerManagerID *int64
	Action         Action
	Comment        string
}

// Transition is a legal move plus the step to append with it. A nil Step
// means the move is recorded without history.
type Transition struct {
	From Status
	To   Status
	Step *StepRecord
}

type StepRecord struct {
	StepType StepType
	Status   string
	ActorID  int64
	Comment  string
}

// AccountingEligible is the set accounting can act on: manager approved, or
// submitted by someone with no manager.
func AccountingEligible(current Status, ownerManagerID *int64) bool {
	return current == StatusManagerApproved ||
		(current == StatusSubmitted && ownerManagerID == nil)
}

func branchApplies(b Branch, in TransitionInput) bool {
	switch b {
	case BranchManager:
		return auth.CanApproveExpenses(in.Actor) &&
			in.Current == StatusSubmitted &&
			in.OwnerManagerID != nil &&
			*in.OwnerManagerID == in.Actor.UserID
	case BranchAccounting:
		return auth.CanProcessExpenses(in.Actor) && AccountingEligible(in.Current, in.OwnerManagerID)
	case BranchLegacy:
		return auth.CanProcessExpenses(in.Actor) && in.Current == StatusAccountingValidated
	}
	return false
}

// stepTypeFor marks a step ACCOUNTING only when the accounting-eligible
// branch fired. The legacy ACCOUNTING_VALIDATED payout records MANAGER.
func stepTypeFor(b Branch) StepType {
	if b == BranchAccounting {
		return StepTypeAccounting
	}
	return StepTypeManager
}

// Decide resolves a reviewer action against the transition table. It never
// touches storage; an error means nothing may change.
func Decide(in TransitionInput) (*Transition, error) {
	if in.Actor == nil {
		return nil, internal.ErrUnauthenticated
	}

	for _, b := range branchOrder {
		if !branchApplies(b, in) {
			continue
		}
		to, ok := ruleIndex[ruleKey{b, in.Current, in.Action}]
		if !ok {
			continue
		}

		comment := strings.TrimSpace(in.Comment)
		if in.Action.RequiresComment() && comment == "" {
			return nil, internal.ErrCommentRequired
		}
		if comment == "" {
			comment = string(in.Action)
		}

		return &Transition{
			From: in.Current,
			To:   to,
			Step: &StepRecord{
				StepType: stepTypeFor(b),
				Status:   string(in.Action),
				ActorID:  in.Actor.UserID,
				Comment:  comment,
			},
		}, nil
	}

	return nil, internal.ErrInvalidTransition
}

// DecideSubmit resolves an owner moving their report to SUBMITTED. A first
// submission carries no step; answering a details request appends RESUBMIT
// under the step type of the request being answered.
func DecideSubmit(current Status, actorID int64, lastStepType StepType) (*Transition, error) {
	to, ok := OwnerMoves[current]
	if !ok {
		return nil, internal.ErrInvalidTransition
	}

	t := &Transition{From: current, To: to}
	if current == StatusDetailsRequested {
		if lastStepType == "" {
			lastStepType = StepTypeManager
		}
		t.Step = &StepRecord{
			StepType: lastStepType,
			Status:   StepStatusResubmit,
			ActorID:  actorID,
			Comment:  StepStatusResubmit,
		}
	}
	return t, nil
}
