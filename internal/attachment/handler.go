package attachment

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	"github.com/frahmantamala/expense-reporting/internal/transport"
)

// multipart overhead allowed on top of the per-file limit
const formOverhead = 1 << 20

var uploadFields = []string{"file", "files"}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	MaxBytes int64
}

func NewHandler(service ServiceAPI, maxBytes int64, lg *slog.Logger) *Handler {
	if maxBytes <= 0 {
		maxBytes = internal.DefaultMaxUploadBytes
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		MaxBytes:    maxBytes,
	}
}

// Upload handles POST /expenses/{id}/attachments
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrUnauthenticated)
		return
	}
	expenseID, ok := h.PathInt64(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 4*h.MaxBytes+formOverhead)
	if err := r.ParseMultipartForm(h.MaxBytes + formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.HandleServiceError(w, internal.NewValidationFieldError("file", "upload too large", internal.ErrCodeAttachmentTooLarge))
			return
		}
		h.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, err := h.readFiles(r.MultipartForm)
	if err != nil {
		h.Logger.Error("failed to read uploaded file", "expense_id", expenseID, "error", err)
		h.WriteError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	result, err := h.Service.Upload(r.Context(), sess, expenseID, files)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, result)
}

// readFiles reads at most MaxBytes+1 from each part so oversize files are
// still reported as too large by validation.
func (h *Handler) readFiles(form *multipart.Form) ([]Upload, error) {
	var files []Upload
	for _, field := range uploadFields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			content, err := io.ReadAll(io.LimitReader(f, h.MaxBytes+1))
			_ = f.Close()
			if err != nil {
				return nil, err
			}
			files = append(files, Upload{
				FileName:     fh.Filename,
				DeclaredType: fh.Header.Get("Content-Type"),
				Content:      content,
			})
		}
	}
	return files, nil
}

// Download handles GET /expenses/{id}/attachments/{attachmentId}
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrUnauthenticated)
		return
	}
	expenseID, ok := h.PathInt64(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return
	}
	attachmentID, ok := h.PathInt64(r, "attachmentId")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid attachment ID")
		return
	}

	a, rc, err := h.Service.Open(r.Context(), sess, expenseID, attachmentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": a.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Warn("attachment download interrupted", "attachment_id", a.ID, "error", err)
	}
}
