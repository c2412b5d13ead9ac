package summarizer

import (
	"errors"
	"io"
	"time"

	"github.com/yanqian/docdigest/pkg/metrics"
)

// TransmissionMode selects how document bytes reach the provider.
type TransmissionMode string

const (
	// TransmissionReference uploads the bytes first and generates from the returned reference.
	TransmissionReference TransmissionMode = "reference"
	// TransmissionInline embeds the bytes in the generation request.
	TransmissionInline TransmissionMode = "inline"
)

// ErrDocumentTooLarge is returned by stagers when a document exceeds the configured limit.
var ErrDocumentTooLarge = errors.New("document exceeds size limit")

// Config configures the summarizer.
type Config struct {
	Instruction  string
	Transmission TransmissionMode
	Timeout      time.Duration
	DeleteRemote bool
}

// Document is one uploaded file owned by a single request.
type Document struct {
	Filename string
	MimeType string
	Size     int64
	Content  io.Reader
	// Instruction replaces the configured instruction when non-empty.
	Instruction string
}

// Result is returned to the caller.
type Result struct {
	Summary string              `json:"summary"`
	Usage   *metrics.TokenUsage `json:"-"`
}

// FileRef is the opaque provider-side handle of an uploaded document.
type FileRef struct {
	Name     string
	URI      string
	MimeType string
}

// InlineDocument carries raw bytes embedded in a generation request.
type InlineDocument struct {
	Data     []byte
	MimeType string
	Filename string
}

// GenerateRequest asks the provider to apply Instruction to exactly one of File or Inline.
type GenerateRequest struct {
	Instruction string
	File        *FileRef
	Inline      *InlineDocument
}

// Generation is the provider's answer.
type Generation struct {
	Text  string
	Usage metrics.TokenUsage
}
