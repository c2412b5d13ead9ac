package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/docdigest/internal/domain/summarizer"
)

// ObjectStager parks uploads in an S3 compatible scratch bucket (R2, MinIO, S3).
type ObjectStager struct {
	client   *minio.Client
	bucket   string
	maxBytes int64
	logger   *slog.Logger

	bucketMu    sync.Mutex
	bucketReady bool
}

// NewObjectStager constructs the storage adapter.
func NewObjectStager(endpoint, accessKey, secretKey, bucket, region string, maxBytes int64, logger *slog.Logger) (*ObjectStager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleanEndpoint := sanitizeEndpoint(endpoint)
	useSSL := !strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "http://")
	client, err := minio.New(cleanEndpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage client: %w", err)
	}
	return &ObjectStager{client: client, bucket: bucket, maxBytes: maxBytes, logger: logger.With("component", "staging.object")}, nil
}

func (s *ObjectStager) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil || !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return err
		}
	}
	s.bucketReady = true
	return nil
}

// Stage uploads the document under a request scoped key.
func (s *ObjectStager) Stage(ctx context.Context, doc summarizer.Document) (summarizer.StagedDocument, error) {
	data, err := io.ReadAll(limitReader(doc.Content, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if exceeds(int64(len(data)), s.maxBytes) {
		return nil, summarizer.ErrDocumentTooLarge
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	key := objectKey(doc.Filename)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:      doc.MimeType,
		DisableMultipart: len(data) < 5*1024*1024,
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	s.logger.Debug("document staged", "bucket", s.bucket, "key", key, "etag", info.ETag)
	return &objectDocument{
		stager:   s,
		key:      key,
		filename: doc.Filename,
		mimeType: doc.MimeType,
		size:     info.Size,
	}, nil
}

type objectDocument struct {
	stager   *ObjectStager
	key      string
	filename string
	mimeType string
	size     int64

	once       sync.Once
	releaseErr error
}

func (d *objectDocument) Filename() string { return d.filename }
func (d *objectDocument) MimeType() string { return d.mimeType }
func (d *objectDocument) Size() int64      { return d.size }
func (d *objectDocument) Location() string { return d.stager.bucket + "/" + d.key }

func (d *objectDocument) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := d.stager.client.GetObject(ctx, d.stager.bucket, d.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, statErr := obj.Stat(); statErr != nil {
		obj.Close()
		return nil, statErr
	}
	return obj, nil
}

func (d *objectDocument) Release(ctx context.Context) error {
	d.once.Do(func() {
		d.releaseErr = d.stager.client.RemoveObject(ctx, d.stager.bucket, d.key, minio.RemoveObjectOptions{})
	})
	return d.releaseErr
}

var _ summarizer.Stager = (*ObjectStager)(nil)

func objectKey(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	return "uploads/" + uuid.NewString() + "/" + name
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		raw = parts[0]
	}
	return raw
}
