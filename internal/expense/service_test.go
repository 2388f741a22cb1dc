package expense_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	"github.com/frahmantamala/expense-reporting/internal/core/events"
	"github.com/frahmantamala/expense-reporting/internal/expense"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

// mockExpenseRepository keeps reports in memory and honours the same
// conditional semantics as the GORM repository.
type mockExpenseRepository struct {
	mu       sync.Mutex
	expenses map[int64]*expense.Expense
	managers map[int64]*int64
	nextID   int64
	nextStep int64
	clock    time.Time

	createError     error
	transitionError error
}

func newMockExpenseRepository() *mockExpenseRepository {
	return &mockExpenseRepository{
		expenses: map[int64]*expense.Expense{},
		managers: map[int64]*int64{
			1: int64Ptr(2), // employee reports to manager
			2: nil,
			3: nil,
			4: nil,
		},
		nextID:   1,
		nextStep: 1,
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *mockExpenseRepository) clone(e *expense.Expense) *expense.Expense {
	cp := *e
	cp.Owner = &expense.Owner{ID: e.UserID, ManagerID: m.managers[e.UserID]}
	cp.LineItems = append([]expense.LineItem(nil), e.LineItems...)
	cp.ApprovalSteps = append([]expense.ApprovalStep(nil), e.ApprovalSteps...)
	sort.SliceStable(cp.ApprovalSteps, func(i, j int) bool { return cp.ApprovalSteps[i].ID > cp.ApprovalSteps[j].ID })
	return &cp
}

func (m *mockExpenseRepository) Create(_ context.Context, e *expense.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createError != nil {
		return m.createError
	}
	e.ID = m.nextID
	m.nextID++
	m.clock = m.clock.Add(time.Minute)
	e.CreatedAt = m.clock
	m.expenses[e.ID] = m.clone(e)
	return nil
}

func (m *mockExpenseRepository) GetByID(_ context.Context, id int64) (*expense.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok {
		return nil, internal.ErrExpenseNotFound
	}
	return m.clone(e), nil
}

func (m *mockExpenseRepository) List(_ context.Context, scope expense.Scope) ([]*expense.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*expense.Expense{}
	for _, e := range m.expenses {
		c := m.clone(e)
		if scope.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockExpenseRepository) UpdateDraft(_ context.Context, e *expense.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.expenses[e.ID]
	if !ok {
		return internal.ErrExpenseNotFound
	}
	if cur.CurrentStatus != expense.StatusDraft {
		return internal.ErrCannotModify
	}
	m.expenses[e.ID] = m.clone(e)
	return nil
}

func (m *mockExpenseRepository) DeleteDraft(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.expenses[id]
	if !ok {
		return internal.ErrExpenseNotFound
	}
	if cur.CurrentStatus != expense.StatusDraft {
		return internal.ErrCannotModify
	}
	delete(m.expenses, id)
	return nil
}

func (m *mockExpenseRepository) ApplyTransition(_ context.Context, id int64, from, to expense.Status, step *expense.StepRecord, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitionError != nil {
		return m.transitionError
	}
	cur, ok := m.expenses[id]
	if !ok {
		return internal.ErrExpenseNotFound
	}
	if cur.CurrentStatus != from {
		return internal.ErrStaleStatus
	}
	cur.CurrentStatus = to
	if step != nil {
		comment := step.Comment
		actor := step.ActorID
		cur.ApprovalSteps = append(cur.ApprovalSteps, expense.ApprovalStep{
			ID:               m.nextStep,
			StepType:         step.StepType,
			Status:           step.Status,
			ApprovedByUserID: &actor,
			Comment:          &comment,
			ResolvedAt:       &at,
			CreatedAt:        at,
		})
		m.nextStep++
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) statusChanges() []*events.ExpenseStatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*events.ExpenseStatusChangedEvent
	for _, e := range p.events {
		if sc, ok := e.(*events.ExpenseStatusChangedEvent); ok {
			out = append(out, sc)
		}
	}
	return out
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validCreate(status string) expense.CreateExpenseDTO {
	return expense.CreateExpenseDTO{
		Title:         "Client dinner",
		Amount:        decimal.NewFromInt(100),
		DateOfExpense: "2026-02-14",
		Status:        status,
	}
}

var _ = Describe("Expense Service", func() {
	var (
		repo      *mockExpenseRepository
		publisher *recordingPublisher
		service   *expense.Service
		ctx       context.Context
	)

	BeforeEach(func() {
		repo = newMockExpenseRepository()
		publisher = &recordingPublisher{}
		service = expense.NewService(repo, publisher, silentLogger())
		ctx = context.Background()
	})

	Describe("Create", func() {
		It("creates a draft by default with USD", func() {
			e, err := service.Create(ctx, employeeActor, validCreate(""))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.ID).To(BeNumerically(">", 0))
			Expect(e.CurrentStatus).To(Equal(expense.StatusDraft))
			Expect(e.Currency).To(Equal("USD"))
			Expect(e.UserID).To(Equal(employeeActor.UserID))
		})

		It("submits immediately when asked", func() {
			e, err := service.Create(ctx, employeeActor, validCreate("submitted"))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.CurrentStatus).To(Equal(expense.StatusSubmitted))
		})

		It("sets the amount to the line item total", func() {
			dto := validCreate("")
			dto.Amount = decimal.NewFromInt(1)
			dto.LineItems = []expense.LineItemDTO{
				{Description: "Taxi", Amount: decimal.RequireFromString("12.50")},
				{Description: "Hotel", Amount: decimal.RequireFromString("87.25")},
			}

			e, err := service.Create(ctx, employeeActor, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Amount.Equal(decimal.RequireFromString("99.75"))).To(BeTrue())
			Expect(e.LineItems).To(HaveLen(2))
		})

		It("rejects a non-positive amount", func() {
			dto := validCreate("")
			dto.Amount = decimal.Zero
			_, err := service.Create(ctx, employeeActor, dto)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		DescribeTable("rejects amounts the NUMERIC(12,2) column cannot hold",
			func(raw string) {
				// Given an amount out of range or too precise
				dto := validCreate("")
				dto.Amount = decimal.RequireFromString(raw)

				// When the report is created
				_, err := service.Create(ctx, employeeActor, dto)

				// Then it fails validation on the amount field
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
				details := appErr.Details.(internal.ValidationErrors)
				Expect(details.Errors).To(ContainElement(HaveField("Code", string(internal.ErrCodeInvalidAmount))))
			},
			Entry("too large", "1000000000000"),
			Entry("just past the limit", "10000000000.00"),
			Entry("three decimal places", "12.345"),
		)

		It("accepts the largest storable amount", func() {
			dto := validCreate("")
			dto.Amount = decimal.RequireFromString("9999999999.99")

			_, err := service.Create(ctx, employeeActor, dto)

			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects an over-precise line item", func() {
			dto := validCreate("")
			dto.LineItems = []expense.LineItemDTO{{Description: "Taxi", Amount: decimal.RequireFromString("1.005")}}

			_, err := service.Create(ctx, employeeActor, dto)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("rejects a malformed date and a missing title", func() {
			dto := validCreate("")
			dto.Title = " "
			dto.DateOfExpense = "14/02/2026"
			_, err := service.Create(ctx, employeeActor, dto)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			details := appErr.Details.(internal.ValidationErrors)
			fields := []string{}
			for _, d := range details.Errors {
				fields = append(fields, d.Field)
			}
			Expect(fields).To(ContainElements("title", "dateOfExpense"))
		})

		It("denies users without any capability", func() {
			_, err := service.Create(ctx, &auth.Session{UserID: 9}, validCreate(""))
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})

		It("surfaces store failures as internal errors", func() {
			repo.createError = errors.New("disk full")
			_, err := service.Create(ctx, employeeActor, validCreate(""))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
		})
	})

	Describe("full cycle", func() {
		It("records MANAGER/APPROVE then ACCOUNTING/PAY", func() {
			e, err := service.Create(ctx, employeeActor, validCreate("SUBMITTED"))
			Expect(err).NotTo(HaveOccurred())

			resp, err := service.ApplyAction(ctx, managerActor, expense.ActionDTO{ExpenseID: e.ID, Action: "approve"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(expense.StatusManagerApproved))

			resp, err = service.ApplyAction(ctx, accountantActor, expense.ActionDTO{ExpenseID: e.ID, Action: "PAY"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(expense.StatusPaid))

			got, err := service.Get(ctx, employeeActor, e.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CurrentStatus).To(Equal(expense.StatusPaid))
			Expect(got.ApprovalSteps).To(HaveLen(2))

			// newest first
			Expect(got.ApprovalSteps[0].StepType).To(Equal(expense.StepTypeAccounting))
			Expect(got.ApprovalSteps[0].Status).To(Equal("PAY"))
			Expect(got.ApprovalSteps[1].StepType).To(Equal(expense.StepTypeManager))
			Expect(got.ApprovalSteps[1].Status).To(Equal("APPROVE"))

			changes := publisher.statusChanges()
			Expect(changes).To(HaveLen(2))
			Expect(changes[1].ToStatus).To(Equal(string(expense.StatusPaid)))
		})

		It("leaves MANAGER_APPROVED untouched when accounting rejects without a comment", func() {
			e, _ := service.Create(ctx, employeeActor, validCreate("SUBMITTED"))
			_, err := service.ApplyAction(ctx, managerActor, expense.ActionDTO{ExpenseID: e.ID, Action: "APPROVE"})
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 2; i++ {
				_, err = service.ApplyAction(ctx, accountantActor, expense.ActionDTO{ExpenseID: e.ID, Action: "REJECT"})
				Expect(err).To(MatchError(internal.ErrCommentRequired))
			}

			got, _ := service.Get(ctx, employeeActor, e.ID)
			Expect(got.CurrentStatus).To(Equal(expense.StatusManagerApproved))
			Expect(got.ApprovalSteps).To(HaveLen(1))
		})

		It("routes top-level submissions straight to accounting", func() {
			e, err := service.Create(ctx, managerActor, validCreate("SUBMITTED"))
			Expect(err).NotTo(HaveOccurred())

			queue, err := service.Queue(ctx, managerActor)
			Expect(err).NotTo(HaveOccurred())
			Expect(queue).To(BeEmpty())

			resp, err := service.ApplyAction(ctx, accountantActor, expense.ActionDTO{ExpenseID: e.ID, Action: "PAY"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(expense.StatusPaid))
		})
	})

	Describe("ApplyAction", func() {
		var submitted *expense.Expense

		BeforeEach(func() {
			var err error
			submitted, err = service.Create(ctx, employeeActor, validCreate("SUBMITTED"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects an unknown action before loading anything", func() {
			_, err := service.ApplyAction(ctx, managerActor, expense.ActionDTO{ExpenseID: submitted.ID, Action: "ESCALATE"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidAction))
		})

		It("returns not found for a missing report", func() {
			_, err := service.ApplyAction(ctx, managerActor, expense.ActionDTO{ExpenseID: 999, Action: "APPROVE"})
			Expect(err).To(MatchError(internal.ErrExpenseNotFound))
		})

		It("refuses a reviewer outside the reporting line", func() {
			_, err := service.ApplyAction(ctx, accountantActor, expense.ActionDTO{ExpenseID: submitted.ID, Action: "PAY"})
			Expect(err).To(MatchError(internal.ErrInvalidTransition))
			Expect(publisher.statusChanges()).To(BeEmpty())
		})

		It("reports a lost race as a conflict", func() {
			repo.transitionError = internal.ErrStaleStatus
			_, err := service.ApplyAction(ctx, managerActor, expense.ActionDTO{ExpenseID: submitted.ID, Action: "APPROVE"})
			Expect(err).To(MatchError(internal.ErrStaleStatus))
			Expect(publisher.statusChanges()).To(BeEmpty())
		})

		It("stores the reason on a rejection", func() {
			_, err := service.ApplyAction(ctx, managerActor, expense.ActionDTO{ExpenseID: submitted.ID, Action: "REJECT", Comment: "duplicate"})
			Expect(err).NotTo(HaveOccurred())

			got, _ := service.Get(ctx, employeeActor, submitted.ID)
			Expect(got.CurrentStatus).To(Equal(expense.StatusManagerRejected))
			Expect(*got.ApprovalSteps[0].Comment).To(Equal("duplicate"))
		})
	})

	Describe("details requested loop", func() {
		It("lets the owner resubmit with a RESUBMIT step of the same type", func() {
			e, _ := service.Create(ctx, employeeActor, validCreate("SUBMITTED"))
			_, err := service.ApplyAction(ctx, managerActor, expense.ActionDTO{ExpenseID: e.ID, Action: "REQUEST_DETAILS", Comment: "receipt?"})
			Expect(err).NotTo(HaveOccurred())

			got, err := service.Submit(ctx, employeeActor, e.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CurrentStatus).To(Equal(expense.StatusSubmitted))
			Expect(got.ApprovalSteps).To(HaveLen(2))
			Expect(got.ApprovalSteps[0].Status).To(Equal(expense.StepStatusResubmit))
			Expect(got.ApprovalSteps[0].StepType).To(Equal(expense.StepTypeManager))
		})

		It("does not let anyone else submit", func() {
			e, _ := service.Create(ctx, employeeActor, validCreate(""))
			_, err := service.Submit(ctx, managerActor, e.ID)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})

		It("submits a draft without recording a step", func() {
			e, _ := service.Create(ctx, employeeActor, validCreate(""))
			got, err := service.Submit(ctx, employeeActor, e.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CurrentStatus).To(Equal(expense.StatusSubmitted))
			Expect(got.ApprovalSteps).To(BeEmpty())
		})
	})

	Describe("drafts", func() {
		It("lets the owner edit and delete a draft", func() {
			e, _ := service.Create(ctx, employeeActor, validCreate(""))
			title := "Team lunch"
			got, err := service.Update(ctx, employeeActor, e.ID, expense.UpdateExpenseDTO{Title: &title})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("Team lunch"))

			Expect(service.Delete(ctx, employeeActor, e.ID)).To(Succeed())
			_, err = service.Get(ctx, employeeActor, e.ID)
			Expect(err).To(MatchError(internal.ErrExpenseNotFound))
		})

		It("freezes content once submitted", func() {
			e, _ := service.Create(ctx, employeeActor, validCreate("SUBMITTED"))
			title := "Changed"
			_, err := service.Update(ctx, employeeActor, e.ID, expense.UpdateExpenseDTO{Title: &title})
			Expect(err).To(MatchError(internal.ErrCannotModify))
			Expect(service.Delete(ctx, employeeActor, e.ID)).To(MatchError(internal.ErrCannotModify))
		})

		It("refuses edits by anyone but the owner", func() {
			e, _ := service.Create(ctx, employeeActor, validCreate(""))
			title := "Changed"
			_, err := service.Update(ctx, adminActor, e.ID, expense.UpdateExpenseDTO{Title: &title})
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
			Expect(service.Delete(ctx, adminActor, e.ID)).To(MatchError(internal.ErrUnauthorizedAccess))
		})
	})

	Describe("reads", func() {
		It("hides other people's reports from ordinary users", func() {
			e, _ := service.Create(ctx, managerActor, validCreate(""))
			_, err := service.Get(ctx, employeeActor, e.ID)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})

		It("puts a team member's submission in exactly one manager queue entry", func() {
			_, _ = service.Create(ctx, employeeActor, validCreate("SUBMITTED"))
			_, _ = service.Create(ctx, employeeActor, validCreate(""))

			queue, err := service.Queue(ctx, managerActor)
			Expect(err).NotTo(HaveOccurred())
			Expect(queue).To(HaveLen(1))
		})

		It("gives a process-only accountant the accounting-eligible set", func() {
			// Given a manager-approved report, a top-level submission, a
			// team submission still with its manager, and a draft
			approved, _ := service.Create(ctx, employeeActor, validCreate("SUBMITTED"))
			_, err := service.ApplyAction(ctx, managerActor, expense.ActionDTO{ExpenseID: approved.ID, Action: "APPROVE"})
			Expect(err).NotTo(HaveOccurred())
			topLevel, _ := service.Create(ctx, managerActor, validCreate("SUBMITTED"))
			_, _ = service.Create(ctx, employeeActor, validCreate("SUBMITTED"))
			_, _ = service.Create(ctx, managerActor, validCreate(""))

			// When the accountant opens the queue
			queue, err := service.Queue(ctx, accountantActor)

			// Then exactly the eligible reports are listed
			Expect(err).NotTo(HaveOccurred())
			ids := []int64{}
			for _, e := range queue {
				ids = append(ids, e.ID)
			}
			Expect(ids).To(ConsistOf(approved.ID, topLevel.ID))
		})

		It("denies the queue to plain employees", func() {
			_, err := service.Queue(ctx, employeeActor)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})

		It("lists newest first", func() {
			first, _ := service.Create(ctx, employeeActor, validCreate(""))
			second, _ := service.Create(ctx, employeeActor, validCreate(""))

			list, err := service.List(ctx, employeeActor, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].ID).To(Equal(second.ID))
			Expect(list[1].ID).To(Equal(first.ID))
		})
	})
})
