package expense

import (
	"github.com/frahmantamala/expense-reporting/internal/auth"
)

// QueueClause selects reports in one status, optionally narrowed by the
// owner's manager.
type QueueClause struct {
	Status    Status
	ManagerID *int64
	TopLevel  bool
}

// Scope is the row predicate an actor may read. Clauses are ORed; OwnerID
// and Status are ANDed on top.
type Scope struct {
	OwnerID int64
	Status  Status
	Clauses []QueueClause
	None    bool
}

// ListScope is the predicate for GET /expenses. statusFilter may be empty.
func ListScope(actor *auth.Session, statusFilter string) (Scope, error) {
	if actor == nil {
		return Scope{None: true}, nil
	}

	var scope Scope
	if statusFilter != "" {
		st, err := ParseStatus(statusFilter)
		if err != nil {
			return Scope{}, err
		}
		scope.Status = st
	}
	if !auth.CanViewAllExpenses(actor) {
		scope.OwnerID = actor.UserID
	}
	return scope, nil
}

// QueueScope is the pending action queue. Managers get submitted reports of
// their direct reports, accounting gets the eligible set, both get the
// union.
func QueueScope(actor *auth.Session) Scope {
	var clauses []QueueClause
	if auth.CanApproveExpenses(actor) {
		id := actor.UserID
		clauses = append(clauses, QueueClause{Status: StatusSubmitted, ManagerID: &id})
	}
	if auth.CanProcessExpenses(actor) {
		clauses = append(clauses,
			QueueClause{Status: StatusManagerApproved},
			QueueClause{Status: StatusSubmitted, TopLevel: true},
		)
	}
	if len(clauses) == 0 {
		return Scope{None: true}
	}
	return Scope{Clauses: clauses}
}

// Matches evaluates the scope against a loaded report.
func (s Scope) Matches(e *Expense) bool {
	if s.None || e == nil {
		return false
	}
	if s.OwnerID != 0 && e.UserID != s.OwnerID {
		return false
	}
	if s.Status != "" && e.CurrentStatus != s.Status {
		return false
	}
	if len(s.Clauses) == 0 {
		return true
	}

	var managerID *int64
	if e.Owner != nil {
		managerID = e.Owner.ManagerID
	}
	for _, c := range s.Clauses {
		if c.matches(e.CurrentStatus, managerID) {
			return true
		}
	}
	return false
}

func (c QueueClause) matches(st Status, managerID *int64) bool {
	if st != c.Status {
		return false
	}
	if c.TopLevel && managerID != nil {
		return false
	}
	if c.ManagerID != nil && (managerID == nil || *managerID != *c.ManagerID) {
		return false
	}
	return true
}
