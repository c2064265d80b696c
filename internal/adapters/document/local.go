package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Amund211/docprompt/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Local is a reference document stored on the local filesystem
type Local struct {
	path   string
	tracer trace.Tracer
}

func NewLocal(path string) *Local {
	return &Local{
		path:   path,
		tracer: otel.Tracer("docprompt/document/local"),
	}
}

// Key identifying the document in caches and the upload ledger
func (l *Local) Key() string {
	return filepath.Clean(l.path)
}

func (l *Local) Name() string {
	return filepath.Base(l.path)
}

func (l *Local) Stat(ctx context.Context) (domain.DocumentInfo, error) {
	info, err := os.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.DocumentInfo{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, l.path)
	} else if err != nil {
		return domain.DocumentInfo{}, fmt.Errorf("failed to stat document: %w", err)
	}

	if info.IsDir() {
		return domain.DocumentInfo{}, fmt.Errorf("%w: %s is a directory", domain.ErrDocumentNotFound, l.path)
	}

	return domain.DocumentInfo{
		Name:       info.Name(),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// Open returns a reader for the content. The caller must close it.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	file, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, l.path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return file, nil
}

// Digest returns the hex encoded SHA-256 of the content
func (l *Local) Digest(ctx context.Context) (string, error) {
	ctx, span := l.tracer.Start(ctx, "Local.Digest")
	defer span.End()

	file, err := l.Open(ctx)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	span.SetAttributes(attribute.Int64("size", size))

	return hex.EncodeToString(hash.Sum(nil)), nil
}
