package role

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
	}
	return sess, ok
}

// ListRoles handles GET /admin/roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	roles, err := h.Service.List(r.Context(), sess)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, roles)
}

// CreateRole handles POST /admin/roles
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var dto RoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.Service.Create(r.Context(), sess, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, created)
}

// UpdateRole handles PUT /admin/roles/{id}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid role ID")
		return
	}
	var dto RoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := h.Service.Update(r.Context(), sess, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, updated)
}

// DeleteRole handles DELETE /admin/roles/{id}
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid role ID")
		return
	}
	if err := h.Service.Delete(r.Context(), sess, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
