package summarizer

import (
	"context"
	"io"
)

// Stager materializes an uploaded document for the duration of one request.
type Stager interface {
	Stage(ctx context.Context, doc Document) (StagedDocument, error)
}

// StagedDocument is a materialized document. Release must be safe to call more than once.
type StagedDocument interface {
	Filename() string
	MimeType() string
	Size() int64
	// Location describes where the bytes live, for logging.
	Location() string
	Open(ctx context.Context) (io.ReadCloser, error)
	Release(ctx context.Context) error
}

// Provider is the external summarization capability.
type Provider interface {
	UploadFile(ctx context.Context, doc StagedDocument) (FileRef, error)
	DeleteFile(ctx context.Context, ref FileRef) error
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}
