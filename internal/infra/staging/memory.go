package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/yanqian/docdigest/internal/domain/summarizer"
)

// MemoryStorage keeps the upload in a buffer; nothing touches disk.
type MemoryStorage struct {
	maxBytes int64
}

// NewMemoryStorage constructs the in-memory stager.
func NewMemoryStorage(maxBytes int64) *MemoryStorage {
	return &MemoryStorage{maxBytes: maxBytes}
}

// Stage reads the document fully into memory.
func (s *MemoryStorage) Stage(_ context.Context, doc summarizer.Document) (summarizer.StagedDocument, error) {
	var buf bytes.Buffer
	if doc.Size > 0 && (s.maxBytes <= 0 || doc.Size <= s.maxBytes) {
		buf.Grow(int(doc.Size))
	}
	n, err := io.Copy(&buf, limitReader(doc.Content, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("buffer document: %w", err)
	}
	if exceeds(n, s.maxBytes) {
		return nil, summarizer.ErrDocumentTooLarge
	}
	return &memoryDocument{data: buf.Bytes(), filename: doc.Filename, mimeType: doc.MimeType}, nil
}

type memoryDocument struct {
	mu       sync.Mutex
	data     []byte
	filename string
	mimeType string
	released bool
}

func (d *memoryDocument) Filename() string { return d.filename }
func (d *memoryDocument) MimeType() string { return d.mimeType }
func (d *memoryDocument) Location() string { return "memory" }

func (d *memoryDocument) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.data))
}

func (d *memoryDocument) Open(context.Context) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, fmt.Errorf("document already released")
	}
	return io.NopCloser(bytes.NewReader(d.data)), nil
}

// Release drops the buffer; there is no external artifact to clean up.
func (d *memoryDocument) Release(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = nil
	d.released = true
	return nil
}

var _ summarizer.Stager = (*MemoryStorage)(nil)
