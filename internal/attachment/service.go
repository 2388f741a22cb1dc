package attachment

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/auth"
)

type RepositoryAPI interface {
	// ExpenseOwner returns the owner id of the report, or ErrExpenseNotFound.
	ExpenseOwner(ctx context.Context, expenseID int64) (int64, error)
	Create(ctx context.Context, a *Attachment) error
	Get(ctx context.Context, expenseID, attachmentID int64) (*Attachment, error)
}

type ServiceAPI interface {
	Upload(ctx context.Context, actor *auth.Session, expenseID int64, files []Upload) (*UploadResult, error)
	Open(ctx context.Context, actor *auth.Session, expenseID, attachmentID int64) (*Attachment, io.ReadCloser, error)
}

type Service struct {
	repo     RepositoryAPI
	store    Store
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo RepositoryAPI, store Store, maxBytes int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = internal.DefaultMaxUploadBytes
	}
	return &Service{repo: repo, store: store, maxBytes: maxBytes, logger: logger, now: time.Now}
}

// Upload validates and stores each file. Rejected files are reported by
// name; when nothing could be stored the first rejection is returned.
func (s *Service) Upload(ctx context.Context, actor *auth.Session, expenseID int64, files []Upload) (*UploadResult, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	if actor.MustChangePassword {
		return nil, internal.ErrPasswordChangeRequired
	}

	ownerID, err := s.repo.ExpenseOwner(ctx, expenseID)
	if err != nil {
		return nil, s.storeError("failed to load expense", err)
	}
	if !auth.CanAttachToExpense(actor, ownerID) {
		s.logger.Warn("attachment upload denied", "user_id", actor.UserID, "expense_id", expenseID)
		return nil, internal.ErrUnauthorizedAccess
	}

	if len(files) == 0 {
		return nil, internal.NewValidationFieldError("file", "no files provided", internal.ErrCodeAttachmentMissingKey)
	}

	result := &UploadResult{Uploaded: []*Attachment{}}
	var firstErr *internal.AppError
	for _, f := range files {
		if verr := Validate(f, s.maxBytes); verr != nil {
			if firstErr == nil {
				firstErr = verr
			}
			result.Errors = append(result.Errors, verr.Error())
			continue
		}

		a, err := s.save(ctx, expenseID, f)
		if err != nil {
			s.logger.Error("attachment upload failed", "expense_id", expenseID, "file_name", f.FileName, "error", err)
			result.Errors = append(result.Errors, f.FileName+": upload failed")
			continue
		}
		result.Uploaded = append(result.Uploaded, a)
	}

	if len(result.Uploaded) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, internal.NewInternalError("failed to store attachments", nil)
	}

	s.logger.Info("attachments uploaded",
		"expense_id", expenseID,
		"user_id", actor.UserID,
		"count", len(result.Uploaded),
		"rejected", len(result.Errors))
	return result, nil
}

func (s *Service) save(ctx context.Context, expenseID int64, f Upload) (*Attachment, error) {
	url, err := s.store.Save(ctx, expenseID, f.FileName, f.Content)
	if err != nil {
		return nil, err
	}
	a := &Attachment{
		ExpenseID: expenseID,
		FileName:  f.FileName,
		FileURL:   url,
		MimeType:  normalizeType(f.DeclaredType),
		Size:      int64(len(f.Content)),
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Open returns the attachment and its content for anyone who may view the
// report. The caller closes the reader.
func (s *Service) Open(ctx context.Context, actor *auth.Session, expenseID, attachmentID int64) (*Attachment, io.ReadCloser, error) {
	if actor == nil {
		return nil, nil, internal.ErrUnauthenticated
	}
	ownerID, err := s.repo.ExpenseOwner(ctx, expenseID)
	if err != nil {
		return nil, nil, s.storeError("failed to load expense", err)
	}
	if !auth.CanViewExpense(actor, ownerID) {
		return nil, nil, internal.ErrUnauthorizedAccess
	}

	a, err := s.repo.Get(ctx, expenseID, attachmentID)
	if err != nil {
		return nil, nil, s.storeError("failed to load attachment", err)
	}
	rc, err := s.store.Open(ctx, a.FileURL)
	if err != nil {
		s.logger.Error("attachment content missing", "attachment_id", a.ID, "file_url", a.FileURL, "error", err)
		return nil, nil, internal.ErrAttachmentNotFound
	}
	return a, rc, nil
}

func (s *Service) storeError(msg string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	s.logger.Error(msg, "error", err)
	return internal.NewInternalError(msg, err)
}
