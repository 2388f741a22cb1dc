package attachment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists attachment bytes and resolves the generated URLs.
type Store interface {
	Save(ctx context.Context, expenseID int64, fileName string, content []byte) (string, error)
	Open(ctx context.Context, fileURL string) (io.ReadCloser, error)
}

const urlPrefix = "/uploads/"

// LocalStore writes files below Root as {expenseId}/{uuid}.{ext}.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

func (s *LocalStore) Save(ctx context.Context, expenseID int64, fileName string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.Root, fmt.Sprintf("%d", expenseID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := fmt.Sprintf("%s.%s", uuid.NewString(), SafeExtension(fileName))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}

	return path.Join(urlPrefix, fmt.Sprintf("%d", expenseID), name), nil
}

func (s *LocalStore) Open(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := strings.TrimPrefix(path.Clean(fileURL), urlPrefix)
	if rel == fileURL || strings.Contains(rel, "..") {
		return nil, fmt.Errorf("attachment url %q outside upload root", fileURL)
	}
	return os.Open(filepath.Join(s.Root, filepath.FromSlash(rel)))
}
