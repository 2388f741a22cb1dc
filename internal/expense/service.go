package expense

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	"github.com/frahmantamala/expense-reporting/internal/core/events"
)

// RepositoryAPI is the expense store.
type RepositoryAPI interface {
	Create(ctx context.Context, e *Expense) error
	// GetByID loads the report with owner, line items, attachments and steps
	// (newest step first).
	GetByID(ctx context.Context, id int64) (*Expense, error)
	// List returns the reports matching scope, newest first, with owner.
	List(ctx context.Context, scope Scope) ([]*Expense, error)
	// UpdateDraft saves content fields while the report is still DRAFT.
	UpdateDraft(ctx context.Context, e *Expense) error
	// DeleteDraft removes the report only while it is DRAFT.
	DeleteDraft(ctx context.Context, id int64) error
	// ApplyTransition moves current_status from -> to and appends step in
	// one transaction. It fails with ErrStaleStatus when the row is no
	// longer in from.
	ApplyTransition(ctx context.Context, id int64, from, to Status, step *StepRecord, at time.Time) error
}

type ServiceAPI interface {
	Create(ctx context.Context, actor *auth.Session, dto CreateExpenseDTO) (*Expense, error)
	Get(ctx context.Context, actor *auth.Session, id int64) (*Expense, error)
	List(ctx context.Context, actor *auth.Session, statusFilter string) ([]*Expense, error)
	Queue(ctx context.Context, actor *auth.Session) ([]*Expense, error)
	Update(ctx context.Context, actor *auth.Session, id int64, dto UpdateExpenseDTO) (*Expense, error)
	Delete(ctx context.Context, actor *auth.Session, id int64) error
	Submit(ctx context.Context, actor *auth.Session, id int64) (*Expense, error)
	ApplyAction(ctx context.Context, actor *auth.Session, dto ActionDTO) (*ActionResponse, error)
}

type Service struct {
	repo   RepositoryAPI
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) Create(ctx context.Context, actor *auth.Session, dto CreateExpenseDTO) (*Expense, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	if !auth.CanSubmitExpenses(actor) {
		s.logger.Warn("create expense denied: insufficient capability", "user_id", actor.UserID)
		return nil, internal.ErrUnauthorizedAccess
	}

	dto.Normalize()
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}

	date, _ := time.Parse(dateLayout, dto.DateOfExpense)
	now := s.now()
	e := &Expense{
		UserID:        actor.UserID,
		Title:         dto.Title,
		Description:   dto.Description,
		Category:      dto.Category,
		Amount:        dto.Amount,
		Currency:      dto.Currency,
		DateOfExpense: date,
		CurrentStatus: dto.InitialStatus(),
		LineItems:     toLineItems(dto.LineItems),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if len(e.LineItems) > 0 {
		e.Amount = SumLineItems(e.LineItems)
	}

	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error("failed to create expense", "error", err, "user_id", actor.UserID)
		return nil, internal.NewInternalError("failed to create expense", err)
	}

	s.logger.Info("expense created",
		"expense_id", e.ID,
		"user_id", actor.UserID,
		"amount", e.Amount.StringFixed(2),
		"status", e.CurrentStatus)
	s.publish(ctx, events.NewExpenseCreatedEvent(e.ID, e.UserID, string(e.CurrentStatus), e.Amount.StringFixed(2), e.Currency))

	return e, nil
}

func (s *Service) Get(ctx context.Context, actor *auth.Session, id int64) (*Expense, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}

	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !auth.CanViewExpense(actor, e.UserID) {
		s.logger.Warn("unauthorized access to expense", "expense_id", id, "user_id", actor.UserID, "owner_id", e.UserID)
		return nil, internal.ErrUnauthorizedAccess
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, actor *auth.Session, statusFilter string) ([]*Expense, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}

	scope, err := ListScope(actor, statusFilter)
	if err != nil {
		return nil, err
	}

	list, err := s.repo.List(ctx, scope)
	if err != nil {
		s.logger.Error("failed to list expenses", "error", err, "user_id", actor.UserID)
		return nil, internal.NewInternalError("failed to list expenses", err)
	}
	return list, nil
}

func (s *Service) Queue(ctx context.Context, actor *auth.Session) ([]*Expense, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	if !auth.CanViewApprovalQueue(actor) {
		s.logger.Warn("approval queue denied", "user_id", actor.UserID, "role", actor.RoleName)
		return nil, internal.ErrUnauthorizedAccess
	}

	scope := QueueScope(actor)
	if scope.None {
		return []*Expense{}, nil
	}

	list, err := s.repo.List(ctx, scope)
	if err != nil {
		s.logger.Error("failed to load approval queue", "error", err, "user_id", actor.UserID)
		return nil, internal.NewInternalError("failed to load approval queue", err)
	}
	return list, nil
}

func (s *Service) Update(ctx context.Context, actor *auth.Session, id int64, dto UpdateExpenseDTO) (*Expense, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}

	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanModifyExpense(actor, e.UserID) {
		s.logger.Warn("update expense denied", "expense_id", id, "user_id", actor.UserID, "owner_id", e.UserID)
		return nil, internal.ErrUnauthorizedAccess
	}
	if e.CurrentStatus != StatusDraft {
		return nil, internal.ErrCannotModify
	}

	dto.Normalize()
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}

	dto.Apply(e)
	if dto.LineItems != nil && len(e.LineItems) > 0 {
		e.Amount = SumLineItems(e.LineItems)
	}
	e.UpdatedAt = s.now()

	if err := s.repo.UpdateDraft(ctx, e); err != nil {
		if errors.Is(err, internal.ErrCannotModify) || errors.Is(err, internal.ErrExpenseNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update expense", "error", err, "expense_id", id)
		return nil, internal.NewInternalError("failed to update expense", err)
	}

	s.logger.Info("expense updated", "expense_id", id, "user_id", actor.UserID)
	return e, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.Session, id int64) error {
	if actor == nil {
		return internal.ErrUnauthenticated
	}

	e, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !auth.IsOwner(actor, e.UserID) {
		s.logger.Warn("delete expense denied", "expense_id", id, "user_id", actor.UserID, "owner_id", e.UserID)
		return internal.ErrUnauthorizedAccess
	}
	if e.CurrentStatus != StatusDraft {
		return internal.ErrCannotModify
	}

	if err := s.repo.DeleteDraft(ctx, id); err != nil {
		if errors.Is(err, internal.ErrCannotModify) || errors.Is(err, internal.ErrExpenseNotFound) {
			return err
		}
		s.logger.Error("failed to delete expense", "error", err, "expense_id", id)
		return internal.NewInternalError("failed to delete expense", err)
	}

	s.logger.Info("draft expense deleted", "expense_id", id, "user_id", actor.UserID)
	return nil
}

// Submit moves the owner's DRAFT or DETAILS_REQUESTED report to SUBMITTED.
func (s *Service) Submit(ctx context.Context, actor *auth.Session, id int64) (*Expense, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}

	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.IsOwner(actor, e.UserID) {
		s.logger.Warn("submit expense denied", "expense_id", id, "user_id", actor.UserID, "owner_id", e.UserID)
		return nil, internal.ErrUnauthorizedAccess
	}

	t, err := DecideSubmit(e.CurrentStatus, actor.UserID, e.LastStepType())
	if err != nil {
		s.logger.Info("submit rejected", "expense_id", id, "status", e.CurrentStatus)
		return nil, err
	}

	action := "SUBMIT"
	if t.Step != nil {
		action = t.Step.Status
	}
	if err := s.commit(ctx, e, t, action, actor.UserID); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// ApplyAction runs a reviewer action through the state machine and commits
// the result.
func (s *Service) ApplyAction(ctx context.Context, actor *auth.Session, dto ActionDTO) (*ActionResponse, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}
	action, err := ParseAction(dto.Action)
	if err != nil {
		return nil, err
	}

	e, err := s.load(ctx, dto.ExpenseID)
	if err != nil {
		return nil, err
	}

	t, err := Decide(TransitionInput{
		Current:        e.CurrentStatus,
		Actor:          actor,
		OwnerManagerID: e.OwnerManagerID(),
		Action:         action,
		Comment:        dto.Comment,
	})
	if err != nil {
		s.logger.Info("action rejected",
			"expense_id", e.ID,
			"user_id", actor.UserID,
			"action", action,
			"status", e.CurrentStatus,
			"reason", err.Error())
		return nil, err
	}

	if e.UserID == actor.UserID {
		s.logger.Warn("reviewer acting on own expense",
			"expense_id", e.ID,
			"user_id", actor.UserID,
			"action", action,
			"self_action", true)
	}

	if err := s.commit(ctx, e, t, string(action), actor.UserID); err != nil {
		return nil, err
	}
	return &ActionResponse{Success: true, Status: t.To}, nil
}

func (s *Service) commit(ctx context.Context, e *Expense, t *Transition, action string, actorID int64) error {
	if err := s.repo.ApplyTransition(ctx, e.ID, t.From, t.To, t.Step, s.now()); err != nil {
		if errors.Is(err, internal.ErrStaleStatus) {
			s.logger.Warn("transition lost a race", "expense_id", e.ID, "from", t.From, "to", t.To)
			return err
		}
		s.logger.Error("failed to commit transition", "error", err, "expense_id", e.ID)
		return internal.NewInternalError("failed to update expense status", err)
	}

	var stepType string
	if t.Step != nil {
		stepType = string(t.Step.StepType)
	}
	s.logger.Info("expense status changed",
		"expense_id", e.ID,
		"user_id", actorID,
		"from", t.From,
		"to", t.To,
		"action", action)
	s.publish(ctx, events.NewExpenseStatusChangedEvent(e.ID, e.UserID, actorID, string(t.From), string(t.To), action, stepType))
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (*Expense, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrExpenseNotFound) {
			return nil, internal.ErrExpenseNotFound
		}
		s.logger.Error("failed to load expense", "error", err, "expense_id", id)
		return nil, internal.NewInternalError("failed to load expense", err)
	}
	return e, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "error", err, "event_type", event.EventType())
	}
}
