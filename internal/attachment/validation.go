package attachment

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/gabriel-vasile/mimetype"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimePDF  = "application/pdf"
)

var signatures = map[string][]byte{
	MimeJPEG: {0xFF, 0xD8, 0xFF},
	MimePNG:  {0x89, 0x50, 0x4E, 0x47},
	MimePDF:  {0x25, 0x50, 0x44, 0x46},
}

var safeExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true, "pdf": true}

func AllowedType(declared string) bool {
	_, ok := signatures[declared]
	return ok
}

// Validate checks size, declared type, the sniffed content type and the
// leading signature bytes, in that order.
func Validate(u Upload, maxBytes int64) *internal.AppError {
	if maxBytes > 0 && int64(len(u.Content)) > maxBytes {
		return internal.NewValidationFieldError("file",
			fmt.Sprintf("%s: file too large (max %d bytes)", u.FileName, maxBytes),
			internal.ErrCodeAttachmentTooLarge)
	}

	declared := normalizeType(u.DeclaredType)
	sig, ok := signatures[declared]
	if !ok {
		return internal.NewValidationFieldError("file",
			fmt.Sprintf("%s: invalid file type, use PDF, JPG or PNG", u.FileName),
			internal.ErrCodeAttachmentType)
	}

	if !mimetype.Detect(u.Content).Is(declared) || !bytes.HasPrefix(u.Content, sig) {
		return internal.NewValidationFieldError("file",
			fmt.Sprintf("%s: file content does not match its type", u.FileName),
			internal.ErrCodeAttachmentSignature)
	}
	return nil
}

// SafeExtension keeps jpg, jpeg, png and pdf and maps everything else to bin.
func SafeExtension(fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if safeExtensions[ext] {
		return ext
	}
	return "bin"
}

func normalizeType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}
