package dashboard

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

// Accounting handles GET /dashboard/accounting
func (h *Handler) Accounting(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrUnauthenticated)
		return
	}

	sum, err := h.Service.Accounting(r.Context(), sess)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, sum)
}
