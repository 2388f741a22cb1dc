package attachment

import (
	"time"

	expenseDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/expense"
)

// Attachment is a receipt stored for an expense report. FileName is the
// uploader's name for display; FileURL is the generated storage path.
type Attachment struct {
	ID        int64     `json:"id"`
	ExpenseID int64     `json:"expenseId"`
	FileName  string    `json:"fileName"`
	FileURL   string    `json:"fileUrl"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Upload is one file taken from a multipart request.
type Upload struct {
	FileName     string
	DeclaredType string
	Content      []byte
}

// UploadResult lists stored files and per-file rejections.
type UploadResult struct {
	Uploaded []*Attachment `json:"uploaded"`
	Errors   []string      `json:"errors,omitempty"`
}

func ToDataModel(a *Attachment) *expenseDatamodel.Attachment {
	return &expenseDatamodel.Attachment{
		ID:              a.ID,
		ExpenseReportID: a.ExpenseID,
		FileName:        a.FileName,
		FileURL:         a.FileURL,
		MimeType:        a.MimeType,
		Size:            a.Size,
		CreatedAt:       a.CreatedAt,
	}
}

func FromDataModel(m *expenseDatamodel.Attachment) *Attachment {
	return &Attachment{
		ID:        m.ID,
		ExpenseID: m.ExpenseReportID,
		FileName:  m.FileName,
		FileURL:   m.FileURL,
		MimeType:  m.MimeType,
		Size:      m.Size,
		CreatedAt: m.CreatedAt,
	}
}
