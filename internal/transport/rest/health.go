package rest

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/frahmantamala/expense-reporting/internal/transport"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	DurationMs int64        `json:"duration_ms"`
}

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	*transport.BaseHandler
	db        Pinger
	uploadDir string
}

func NewHealthHandler(db Pinger, uploadDir string) *HealthHandler {
	return &HealthHandler{BaseHandler: transport.NewBaseHandler(nil), db: db, uploadDir: uploadDir}
}

// Ping only says the process is up.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// Health checks the database and the attachment directory.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    HealthHealthy,
		CheckedAt: time.Now(),
		Components: map[string]CheckEntry{
			"database": check(func() error { return h.db.PingContext(ctx) }),
			"storage":  check(h.checkUploadDir),
		},
	}

	statusCode := http.StatusOK
	for _, entry := range resp.Components {
		if entry.Status == HealthUnhealthy {
			resp.Status = HealthUnhealthy
			statusCode = http.StatusServiceUnavailable
		}
	}
	h.WriteJSON(w, statusCode, resp)
}

func (h *HealthHandler) checkUploadDir() error {
	info, err := os.Stat(h.uploadDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "stat", Path: h.uploadDir, Err: os.ErrInvalid}
	}
	return nil
}

func check(fn func() error) CheckEntry {
	start := time.Now()
	entry := CheckEntry{Status: HealthHealthy}
	if err := fn(); err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	entry.CheckedAt = time.Now()
	entry.DurationMs = time.Since(start).Milliseconds()
	return entry
}
