package auth

// Permission predicates. All of them are total over a nil session and
// return false, so callers fail closed when no session was resolved.

// CanSubmitExpenses is deliberately broad: any operational role may file.
func CanSubmitExpenses(s *Session) bool {
	if s == nil {
		return false
	}
	return s.CanSubmit || s.CanApprove || s.CanProcess || s.IsAdmin
}

func CanApproveExpenses(s *Session) bool {
	return s != nil && s.CanApprove
}

func CanProcessExpenses(s *Session) bool {
	return s != nil && s.CanProcess
}

func CanAccessAdminPanel(s *Session) bool {
	return s != nil && s.IsAdmin
}

// CanViewAllExpenses gates the unfiltered expense list.
func CanViewAllExpenses(s *Session) bool {
	return CanProcessExpenses(s) || CanAccessAdminPanel(s)
}

// CanViewApprovalQueue gates the pending-action queue endpoint. Managers
// see their team's submissions, accounting the eligible set.
func CanViewApprovalQueue(s *Session) bool {
	return CanApproveExpenses(s) || CanProcessExpenses(s) || CanAccessAdminPanel(s)
}

// CanViewDashboard gates the accounting dashboard.
func CanViewDashboard(s *Session) bool {
	return CanProcessExpenses(s) || CanAccessAdminPanel(s)
}
