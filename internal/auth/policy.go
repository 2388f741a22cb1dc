package auth

// Ownership rules for a single expense report. They combine the session
// identity with the capability predicates in permission.go.

func IsOwner(s *Session, ownerID int64) bool {
	return s != nil && s.UserID == ownerID
}

// CanViewExpense allows the owner and anyone who reviews, processes or
// administers expenses.
func CanViewExpense(s *Session, ownerID int64) bool {
	if s == nil {
		return false
	}
	return IsOwner(s, ownerID) || s.IsAdmin || s.CanProcess || s.CanApprove
}

// CanModifyExpense covers edit, delete and submit of the owner's own report.
func CanModifyExpense(s *Session, ownerID int64) bool {
	return IsOwner(s, ownerID) && CanSubmitExpenses(s)
}

func CanAttachToExpense(s *Session, ownerID int64) bool {
	if s == nil || s.MustChangePassword {
		return false
	}
	return IsOwner(s, ownerID) || s.IsAdmin
}
