package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Amund211/docprompt/internal/domain"
	"github.com/stretchr/testify/require"
)

const documentKey = "/srv/prompt.pdf"

type fakeSource struct {
	mu      sync.Mutex
	content []byte
	missing bool
}

func newFakeSource(content string) *fakeSource {
	return &fakeSource{content: []byte(content)}
}

func (s *fakeSource) setMissing(missing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing = missing
}

func (s *fakeSource) Key() string {
	return documentKey
}

func (s *fakeSource) Name() string {
	return "prompt.pdf"
}

func (s *fakeSource) Stat(ctx context.Context) (domain.DocumentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.missing {
		return domain.DocumentInfo{}, domain.ErrDocumentNotFound
	}
	return domain.DocumentInfo{Name: "prompt.pdf", Size: int64(len(s.content)), ModifiedAt: time.Now()}, nil
}

func (s *fakeSource) Open(ctx context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.missing {
		return nil, domain.ErrDocumentNotFound
	}
	return io.NopCloser(bytes.NewReader(s.content)), nil
}

func (s *fakeSource) Digest(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.missing {
		return "", domain.ErrDocumentNotFound
	}
	sum := sha256.Sum256(s.content)
	return hex.EncodeToString(sum[:]), nil
}

// Uploader returning the results in order, repeating the last one
type fakeUploader struct {
	t       *testing.T
	results []uploadResult
	release chan struct{}
	calls   atomic.Int32
}

type uploadResult struct {
	handle domain.FileHandle
	err    error
}

func (u *fakeUploader) UploadFile(ctx context.Context, filename string, content io.Reader) (domain.FileHandle, error) {
	u.t.Helper()

	call := int(u.calls.Add(1))

	data, err := io.ReadAll(content)
	require.NoError(u.t, err)
	require.NotEmpty(u.t, data)
	require.Equal(u.t, "prompt.pdf", filename)

	if u.release != nil {
		<-u.release
	}

	result := u.results[min(call, len(u.results))-1]
	return result.handle, result.err
}

type panicUploader struct {
	t *testing.T
}

func (u *panicUploader) UploadFile(ctx context.Context, filename string, content io.Reader) (domain.FileHandle, error) {
	u.t.Helper()
	u.t.Fatal("should not be called")
	return "", nil
}

type fakeCompleter struct {
	t       *testing.T
	mu      sync.Mutex
	handles []domain.FileHandle
	err     func(handle domain.FileHandle) error
}

func (c *fakeCompleter) CreateResponse(ctx context.Context, prompt string, handle domain.FileHandle) (domain.Completion, error) {
	c.mu.Lock()
	c.handles = append(c.handles, handle)
	c.mu.Unlock()

	if c.err != nil {
		if err := c.err(handle); err != nil {
			return domain.Completion{}, err
		}
	}

	return domain.Completion{Text: "answer to " + prompt + " using " + string(handle)}, nil
}

func (c *fakeCompleter) seenHandles() []domain.FileHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.FileHandle(nil), c.handles...)
}

type fakeRepo struct {
	mu        sync.Mutex
	uploads   []domain.Upload
	forgotten []domain.FileHandle
	findErr   error
	storeErr  error
}

func (r *fakeRepo) FindLatest(ctx context.Context, documentKey string, contentSHA256 string) (domain.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findErr != nil {
		return domain.Upload{}, r.findErr
	}

	for i := len(r.uploads) - 1; i >= 0; i-- {
		upload := r.uploads[i]
		if upload.DocumentKey == documentKey && upload.ContentSHA256 == contentSHA256 {
			return upload, nil
		}
	}
	return domain.Upload{}, domain.ErrUploadNotFound
}

func (r *fakeRepo) Store(ctx context.Context, upload domain.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeErr != nil {
		return r.storeErr
	}
	r.uploads = append(r.uploads, upload)
	return nil
}

func (r *fakeRepo) Forget(ctx context.Context, handle domain.FileHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.forgotten = append(r.forgotten, handle)
	remaining := r.uploads[:0]
	for _, upload := range r.uploads {
		if upload.FileHandle != handle {
			remaining = append(remaining, upload)
		}
	}
	r.uploads = remaining
	return nil
}

func (r *fakeRepo) stored() []domain.Upload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Upload(nil), r.uploads...)
}

var errUpload = errors.New("upload error")
