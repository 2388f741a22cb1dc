package expense

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	"github.com/frahmantamala/expense-reporting/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrUnauthenticated)
		return nil, false
	}
	return sess, true
}

func (h *Handler) expenseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := h.PathInt64(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
	}
	return id, ok
}

// ListExpenses handles GET /expenses
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	list, err := h.Service.List(r.Context(), sess, r.URL.Query().Get("status"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, list)
}

// CreateExpense handles POST /expenses
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var dto CreateExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Warn("CreateExpense: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.Service.Create(r.Context(), sess, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, e)
}

// GetExpense handles GET /expenses/{id}
func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}

	e, err := h.Service.Get(r.Context(), sess, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, e)
}

// UpdateExpense handles PATCH /expenses/{id}
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}

	var dto UpdateExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.Service.Update(r.Context(), sess, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, e)
}

// DeleteExpense handles DELETE /expenses/{id}
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), sess, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitExpense handles POST /expenses/{id}/submit
func (h *Handler) SubmitExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}

	e, err := h.Service.Submit(r.Context(), sess, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, e)
}

// ApprovalQueue handles GET /approvals
func (h *Handler) ApprovalQueue(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	list, err := h.Service.Queue(r.Context(), sess)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, list)
}

// ApplyAction handles POST /approvals/action
func (h *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var dto ActionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.ApplyAction(r.Context(), sess, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
