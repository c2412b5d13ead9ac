package summarizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/yanqian/docdigest/pkg/errors"
)

// Service exposes document summarization.
type Service interface {
	Summarize(ctx context.Context, doc Document) (Result, error)
}

// defaultCleanupTimeout bounds staging release and provider-side deletes, which run detached from the request.
const defaultCleanupTimeout = 15 * time.Second

type service struct {
	cfg            Config
	stager         Stager
	provider       Provider
	logger         *slog.Logger
	cleanupTimeout time.Duration
}

// NewService is a wire provider for the summarizer domain.
func NewService(cfg Config, stager Stager, provider Provider, logger *slog.Logger) Service {
	if cfg.Transmission == "" {
		cfg.Transmission = TransmissionReference
	}
	return &service{
		cfg:            cfg,
		stager:         stager,
		provider:       provider,
		logger:         logger.With("component", "summarizer.service"),
		cleanupTimeout: defaultCleanupTimeout,
	}
}

func (s *service) Summarize(ctx context.Context, doc Document) (Result, error) {
	if doc.Content == nil || (strings.TrimSpace(doc.Filename) == "" && doc.Size == 0) {
		return Result{}, apperrors.Wrap(apperrors.CodeInvalidInput, "no file uploaded", nil)
	}
	instruction := s.instructionFor(doc)
	start := time.Now()

	staged, err := s.stager.Stage(ctx, doc)
	if err != nil {
		if errors.Is(err, ErrDocumentTooLarge) {
			return Result{}, apperrors.Wrap(apperrors.CodeTooLarge, "document too large", err)
		}
		return Result{}, apperrors.Wrap(apperrors.CodeProcessingFailed, "stage document", err)
	}
	defer s.release(ctx, staged)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var gen Generation
	switch s.cfg.Transmission {
	case TransmissionInline:
		gen, err = s.dispatchInline(ctx, staged, instruction)
	case TransmissionReference:
		gen, err = s.dispatchReference(ctx, staged, instruction)
	default:
		err = fmt.Errorf("unknown transmission mode %q", s.cfg.Transmission)
	}
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeProcessingFailed, "dispatch document", err)
	}
	if strings.TrimSpace(gen.Text) == "" {
		return Result{}, apperrors.Wrap(apperrors.CodeProcessingFailed, "provider returned empty summary", nil)
	}

	attrs := []any{
		"filename", staged.Filename(),
		"mime_type", staged.MimeType(),
		"size", staged.Size(),
		"transmission", s.cfg.Transmission,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if !gen.Usage.IsZero() {
		attrs = append(attrs, gen.Usage.LogValues()...)
	}
	s.logger.Info("document summarized", attrs...)

	result := Result{Summary: gen.Text}
	if !gen.Usage.IsZero() {
		usage := gen.Usage
		result.Usage = &usage
	}
	return result, nil
}

func (s *service) dispatchReference(ctx context.Context, staged StagedDocument, instruction string) (Generation, error) {
	ref, err := s.provider.UploadFile(ctx, staged)
	if err != nil {
		return Generation{}, fmt.Errorf("upload to provider: %w", err)
	}
	s.logger.Debug("document uploaded to provider", "ref", ref.Name, "uri", ref.URI)
	if s.cfg.DeleteRemote {
		defer s.deleteRemote(ctx, ref)
	}
	gen, err := s.provider.Generate(ctx, GenerateRequest{Instruction: instruction, File: &ref})
	if err != nil {
		return Generation{}, fmt.Errorf("generate from reference: %w", err)
	}
	return gen, nil
}

func (s *service) dispatchInline(ctx context.Context, staged StagedDocument, instruction string) (Generation, error) {
	rc, err := staged.Open(ctx)
	if err != nil {
		return Generation{}, fmt.Errorf("open staged document: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return Generation{}, fmt.Errorf("read staged document: %w", err)
	}
	gen, err := s.provider.Generate(ctx, GenerateRequest{
		Instruction: instruction,
		Inline: &InlineDocument{
			Data:     data,
			MimeType: staged.MimeType(),
			Filename: staged.Filename(),
		},
	})
	if err != nil {
		return Generation{}, fmt.Errorf("generate inline: %w", err)
	}
	return gen, nil
}

// release runs on every exit path, including cancelled requests.
func (s *service) release(ctx context.Context, staged StagedDocument) {
	ctx, cancel := s.cleanupContext(ctx)
	defer cancel()
	if err := staged.Release(ctx); err != nil {
		s.logger.Error("release staged document failed", "location", staged.Location(), "error", err)
	}
}

func (s *service) deleteRemote(ctx context.Context, ref FileRef) {
	ctx, cancel := s.cleanupContext(ctx)
	defer cancel()
	if err := s.provider.DeleteFile(ctx, ref); err != nil {
		s.logger.Warn("delete provider file failed", "ref", ref.Name, "error", err)
	}
}

// cleanupContext survives request cancellation but still gives up after cleanupTimeout.
func (s *service) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
}

func (s *service) instructionFor(doc Document) string {
	if custom := strings.TrimSpace(doc.Instruction); custom != "" {
		return custom
	}
	return s.cfg.Instruction
}
