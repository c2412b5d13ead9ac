package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yanqian/docdigest/internal/domain/summarizer"
)

// tempPrefix marks files owned by the disk stager; the sweeper only touches these.
const tempPrefix = "upload-"

// DiskStager copies uploads into uniquely named files under a private directory.
type DiskStager struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewDiskStager creates dir if needed.
func NewDiskStager(dir string, maxBytes int64, logger *slog.Logger) (*DiskStager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("staging directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &DiskStager{dir: dir, maxBytes: maxBytes, logger: logger.With("component", "staging.disk")}, nil
}

// Stage writes doc to a temp file. The file is removed again on any failure.
func (s *DiskStager) Stage(_ context.Context, doc summarizer.Document) (summarizer.StagedDocument, error) {
	f, err := os.CreateTemp(s.dir, tempPrefix+"*"+safeExt(doc.Filename))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	n, err := io.Copy(f, limitReader(doc.Content, s.maxBytes))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && exceeds(n, s.maxBytes) {
		err = summarizer.ErrDocumentTooLarge
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Error("remove partial temp file failed", "path", path, "error", rmErr)
		}
		if errors.Is(err, summarizer.ErrDocumentTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	s.logger.Debug("document staged", "path", path, "size", n)
	return &diskDocument{path: path, filename: doc.Filename, mimeType: doc.MimeType, size: n}, nil
}

type diskDocument struct {
	path     string
	filename string
	mimeType string
	size     int64

	once       sync.Once
	releaseErr error
}

func (d *diskDocument) Filename() string { return d.filename }
func (d *diskDocument) MimeType() string { return d.mimeType }
func (d *diskDocument) Size() int64      { return d.size }
func (d *diskDocument) Location() string { return d.path }

func (d *diskDocument) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(d.path)
}

func (d *diskDocument) Release(context.Context) error {
	d.once.Do(func() {
		if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.releaseErr = err
		}
	})
	return d.releaseErr
}

var _ summarizer.Stager = (*DiskStager)(nil)

// safeExt keeps a short, plain extension so temp names stay recognizable.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// limitReader reads one byte past the limit so oversize input is detectable.
func limitReader(r io.Reader, maxBytes int64) io.Reader {
	if maxBytes <= 0 {
		return r
	}
	return io.LimitReader(r, maxBytes+1)
}

func exceeds(n, maxBytes int64) bool {
	return maxBytes > 0 && n > maxBytes
}
