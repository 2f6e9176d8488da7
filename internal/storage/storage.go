// Package storage keeps uploaded avatars and job artifacts on the local filesystem
// and serves them under /uploads.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"task-manager/pkg/logger"
)

// URLPrefix is the path files are served under.
const URLPrefix = "/uploads"

var ErrInvalidName = errors.New("invalid file name")

type Storage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

type Local struct {
	Dir     string
	BaseURL string
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return filepath.Join(l.Dir, name), nil
}

// Save writes r to name and returns its public URL.
func (l *Local) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	p, err := l.path(name)
	if err != nil {
		return "", err
	}
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", name, err)
	}
	logger.FromContext(ctx).Info("File stored", zap.String("filename", name))
	return l.URL(name), nil
}

// Delete removes name. A missing file is not an error.
func (l *Local) Delete(ctx context.Context, name string) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	logger.FromContext(ctx).Info("File deleted", zap.String("filename", name))
	return nil
}

func (l *Local) URL(name string) string {
	return l.BaseURL + URLPrefix + "/" + name
}

// NameFromURL returns the stored file name a URL produced by URL points at.
func NameFromURL(url string) string {
	if url == "" {
		return ""
	}
	return path.Base(url)
}

// AvatarName returns a fresh unique file name keeping original's extension.
func AvatarName(original string) string {
	return "avatar-" + uuid.NewString() + strings.ToLower(filepath.Ext(original))
}

// ReportName is the artifact file name of a countdown job.
func ReportName(jobID string) string {
	return fmt.Sprintf("test_report-%s.data", jobID)
}
