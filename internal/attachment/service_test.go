package attachment_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/attachment"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockAttachmentRepository struct {
	owners      map[int64]int64
	attachments map[int64]*attachment.Attachment
	nextID      int64
	createErr   error
}

func newMockAttachmentRepository() *mockAttachmentRepository {
	return &mockAttachmentRepository{
		owners:      map[int64]int64{10: 1},
		attachments: map[int64]*attachment.Attachment{},
		nextID:      1,
	}
}

func (m *mockAttachmentRepository) ExpenseOwner(ctx context.Context, expenseID int64) (int64, error) {
	owner, ok := m.owners[expenseID]
	if !ok {
		return 0, internal.ErrExpenseNotFound
	}
	return owner, nil
}

func (m *mockAttachmentRepository) Create(ctx context.Context, a *attachment.Attachment) error {
	if m.createErr != nil {
		return m.createErr
	}
	a.ID = m.nextID
	m.nextID++
	cp := *a
	m.attachments[a.ID] = &cp
	return nil
}

func (m *mockAttachmentRepository) Get(ctx context.Context, expenseID, attachmentID int64) (*attachment.Attachment, error) {
	a, ok := m.attachments[attachmentID]
	if !ok || a.ExpenseID != expenseID {
		return nil, internal.ErrAttachmentNotFound
	}
	return a, nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ = Describe("Attachment Service", func() {
	var (
		repo    *mockAttachmentRepository
		root    string
		service *attachment.Service
		ctx     context.Context
	)

	owner := &auth.Session{UserID: 1, Capabilities: auth.Capabilities{CanSubmit: true}}
	manager := &auth.Session{UserID: 2, Capabilities: auth.Capabilities{CanSubmit: true, CanApprove: true}}
	admin := &auth.Session{UserID: 4, Capabilities: auth.Capabilities{IsAdmin: true}}

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		repo = newMockAttachmentRepository()
		service = attachment.NewService(repo, attachment.NewLocalStore(root), 2<<20, silentLogger())
	})

	Describe("Upload", func() {
		It("stores the file under a generated name", func() {
			res, err := service.Upload(ctx, owner, 10, []attachment.Upload{
				{FileName: "../../receipt.PDF", DeclaredType: "application/pdf", Content: pdfContent},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Uploaded).To(HaveLen(1))
			a := res.Uploaded[0]
			Expect(a.FileName).To(Equal("../../receipt.PDF"))
			Expect(a.FileURL).To(MatchRegexp(`^/uploads/10/[0-9a-f-]{36}\.pdf$`))
			Expect(a.Size).To(Equal(int64(len(pdfContent))))

			onDisk, err := os.ReadFile(filepath.Join(root, strings.TrimPrefix(a.FileURL, "/uploads/")))
			Expect(err).NotTo(HaveOccurred())
			Expect(onDisk).To(Equal(pdfContent))
		})

		It("reports rejected files next to stored ones", func() {
			res, err := service.Upload(ctx, owner, 10, []attachment.Upload{
				{FileName: "ok.png", DeclaredType: "image/png", Content: pngContent},
				{FileName: "fake.png", DeclaredType: "image/png", Content: pdfContent},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Uploaded).To(HaveLen(1))
			Expect(res.Errors).To(ConsistOf(ContainSubstring("fake.png")))
		})

		It("returns the validation error when nothing was stored", func() {
			_, err := service.Upload(ctx, owner, 10, []attachment.Upload{
				{FileName: "notes.txt", DeclaredType: "text/plain", Content: []byte("hi")},
			})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeAttachmentType))
			Expect(repo.attachments).To(BeEmpty())
		})

		It("requires at least one file", func() {
			_, err := service.Upload(ctx, owner, 10, nil)

			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Code).To(Equal(internal.ErrCodeAttachmentMissingKey))
		})

		It("lets an admin attach but not a manager", func() {
			files := []attachment.Upload{{FileName: "r.jpg", DeclaredType: "image/jpeg", Content: jpegContent}}

			_, err := service.Upload(ctx, admin, 10, files)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Upload(ctx, manager, 10, files)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})

		It("blocks sessions that must change their password", func() {
			pending := &auth.Session{UserID: 1, MustChangePassword: true, Capabilities: auth.Capabilities{CanSubmit: true}}

			_, err := service.Upload(ctx, pending, 10, []attachment.Upload{{FileName: "r.pdf", DeclaredType: "application/pdf", Content: pdfContent}})

			Expect(err).To(MatchError(internal.ErrPasswordChangeRequired))
		})

		It("returns not found for an unknown report", func() {
			_, err := service.Upload(ctx, owner, 99, []attachment.Upload{{FileName: "r.pdf", DeclaredType: "application/pdf", Content: pdfContent}})

			Expect(err).To(MatchError(internal.ErrExpenseNotFound))
		})

		It("hides store failures", func() {
			repo.createErr = errors.New("disk full")

			_, err := service.Upload(ctx, owner, 10, []attachment.Upload{{FileName: "r.pdf", DeclaredType: "application/pdf", Content: pdfContent}})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
		})
	})

	Describe("Open", func() {
		It("streams stored content to reviewers", func() {
			res, err := service.Upload(ctx, owner, 10, []attachment.Upload{{FileName: "r.pdf", DeclaredType: "application/pdf", Content: pdfContent}})
			Expect(err).NotTo(HaveOccurred())

			a, rc, err := service.Open(ctx, manager, 10, res.Uploaded[0].ID)
			Expect(err).NotTo(HaveOccurred())
			defer rc.Close()
			body, err := io.ReadAll(rc)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal(pdfContent))
			Expect(a.MimeType).To(Equal(attachment.MimePDF))
		})

		It("denies sessions that cannot view the report", func() {
			stranger := &auth.Session{UserID: 5, Capabilities: auth.Capabilities{CanSubmit: true}}

			_, _, err := service.Open(ctx, stranger, 10, 1)

			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})
	})

	Describe("Handler", func() {
		var router *chi.Mux

		BeforeEach(func() {
			handler := attachment.NewHandler(service, 2<<20, silentLogger())
			router = chi.NewRouter()
			router.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(auth.ContextWithSession(r.Context(), owner)))
				})
			})
			router.Post("/expenses/{id}/attachments", handler.Upload)
			router.Get("/expenses/{id}/attachments/{attachmentId}", handler.Download)
		})

		multipartBody := func(field, name, contentType string, content []byte) (*bytes.Buffer, string) {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
			h.Set("Content-Type", contentType)
			part, err := mw.CreatePart(h)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(content)
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())
			return &buf, mw.FormDataContentType()
		}

		It("uploads and downloads a receipt", func() {
			body, ct := multipartBody("file", "receipt.png", "image/png", pngContent)
			req := httptest.NewRequest(http.MethodPost, "/expenses/10/attachments", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(w.Body.String()).To(ContainSubstring(`"fileName":"receipt.png"`))

			w = httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/expenses/10/attachments/1", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("image/png"))
			Expect(w.Body.Bytes()).To(Equal(pngContent))
		})

		It("returns 400 for tampered content", func() {
			body, ct := multipartBody("files", "receipt.jpg", "image/jpeg", pdfContent)
			req := httptest.NewRequest(http.MethodPost, "/expenses/10/attachments", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeAttachmentSignature)))
		})

		It("returns 400 for a non-multipart body", func() {
			req := httptest.NewRequest(http.MethodPost, "/expenses/10/attachments", strings.NewReader("{}"))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
