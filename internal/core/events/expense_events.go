package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	EventTypeExpenseCreated       = "expense.created"
	EventTypeExpenseStatusChanged = "expense.status_changed"
)

type ExpenseCreatedEvent struct {
	BaseEvent
	ExpenseID int64  `json:"expenseId"`
	OwnerID   int64  `json:"ownerId"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

func NewExpenseCreatedEvent(expenseID, ownerID int64, status, amount, currency string) *ExpenseCreatedEvent {
	return &ExpenseCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id": expenseID,
				"owner_id":   ownerID,
				"status":     status,
				"amount":     amount,
				"currency":   currency,
			},
		},
		ExpenseID: expenseID,
		OwnerID:   ownerID,
		Status:    status,
		Amount:    amount,
		Currency:  currency,
	}
}

// ExpenseStatusChangedEvent is published once the status update and its
// approval step have committed.
type ExpenseStatusChangedEvent struct {
	BaseEvent
	ExpenseID  int64  `json:"expenseId"`
	OwnerID    int64  `json:"ownerId"`
	ActorID    int64  `json:"actorId"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
	Action     string `json:"action"`
	StepType   string `json:"stepType,omitempty"`
}

func NewExpenseStatusChangedEvent(expenseID, ownerID, actorID int64, from, to, action, stepType string) *ExpenseStatusChangedEvent {
	return &ExpenseStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeExpenseStatusChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id":  expenseID,
				"owner_id":    ownerID,
				"actor_id":    actorID,
				"from_status": from,
				"to_status":   to,
				"action":      action,
				"step_type":   stepType,
			},
		},
		ExpenseID:  expenseID,
		OwnerID:    ownerID,
		ActorID:    actorID,
		FromStatus: from,
		ToStatus:   to,
		Action:     action,
		StepType:   stepType,
	}
}

var statusChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "expense_status_changes_total",
		Help: "Committed expense status changes",
	},
	[]string{"from", "to", "action"},
)

// RegisterExpenseSubscribers wires the audit log and metrics consumers of
// expense events.
func RegisterExpenseSubscribers(bus *EventBus, logger *slog.Logger) {
	bus.Subscribe(EventTypeExpenseStatusChanged, func(ctx context.Context, event Event) error {
		e, ok := event.(*ExpenseStatusChangedEvent)
		if !ok {
			return nil
		}
		statusChangesTotal.WithLabelValues(e.FromStatus, e.ToStatus, e.Action).Inc()
		logger.InfoContext(ctx, "expense status changed",
			"event_id", e.ID,
			"expense_id", e.ExpenseID,
			"owner_id", e.OwnerID,
			"actor_id", e.ActorID,
			"from", e.FromStatus,
			"to", e.ToStatus,
			"action", e.Action)
		return nil
	})

	bus.Subscribe(EventTypeExpenseCreated, func(ctx context.Context, event Event) error {
		e, ok := event.(*ExpenseCreatedEvent)
		if !ok {
			return nil
		}
		logger.InfoContext(ctx, "expense created",
			"event_id", e.ID,
			"expense_id", e.ExpenseID,
			"owner_id", e.OwnerID,
			"status", e.Status)
		return nil
	})
}
