package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yanqian/docdigest/internal/domain/summarizer"
	"github.com/yanqian/docdigest/pkg/metrics"
)

const defaultPollInterval = time.Second

// Client summarizes documents with the Gemini API.
type Client struct {
	client       *genai.Client
	model        string
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewClient constructs a Gemini client. baseURL is optional.
func NewClient(ctx context.Context, apiKey, model, baseURL string, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key cannot be empty")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(baseURL) != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Client{
		client:       client,
		model:        model,
		pollInterval: defaultPollInterval,
		logger:       logger.With("component", "llm.gemini"),
	}, nil
}

// UploadFile pushes the document to the Gemini Files API and waits until it is usable.
func (c *Client) UploadFile(ctx context.Context, doc summarizer.StagedDocument) (summarizer.FileRef, error) {
	rc, err := doc.Open(ctx)
	if err != nil {
		return summarizer.FileRef{}, fmt.Errorf("open document: %w", err)
	}
	defer rc.Close()

	file, err := c.client.Files.Upload(ctx, rc, &genai.UploadFileConfig{
		MIMEType:    doc.MimeType(),
		DisplayName: doc.Filename(),
	})
	if err != nil {
		return summarizer.FileRef{}, fmt.Errorf("upload file: %w", err)
	}
	file, err = c.waitActive(ctx, file)
	if err != nil {
		// The caller never sees a ref on failure, so the remote copy is ours to drop.
		if delErr := c.DeleteFile(context.WithoutCancel(ctx), summarizer.FileRef{Name: file.Name}); delErr != nil {
			c.logger.Warn("delete unusable file failed", "file", file.Name, "error", delErr)
		}
		return summarizer.FileRef{}, err
	}
	return summarizer.FileRef{Name: file.Name, URI: file.URI, MimeType: file.MIMEType}, nil
}

func (c *Client) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return file, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		next, err := c.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return file, fmt.Errorf("poll file state: %w", err)
		}
		file = next
	}
	if file.State == genai.FileStateFailed {
		return file, fmt.Errorf("file %s failed provider processing", file.Name)
	}
	return file, nil
}

// DeleteFile removes an uploaded file from the Files API.
func (c *Client) DeleteFile(ctx context.Context, ref summarizer.FileRef) error {
	if ref.Name == "" {
		return nil
	}
	if _, err := c.client.Files.Delete(ctx, ref.Name, nil); err != nil {
		return fmt.Errorf("delete file %s: %w", ref.Name, err)
	}
	return nil
}

// Generate asks the model to apply the instruction to the document.
func (c *Client) Generate(ctx context.Context, req summarizer.GenerateRequest) (summarizer.Generation, error) {
	parts, err := buildParts(req)
	if err != nil {
		return summarizer.Generation{}, err
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return summarizer.Generation{}, fmt.Errorf("generate content: %w", err)
	}
	c.logger.Debug("gemini response received", "model", c.model)
	return summarizer.Generation{Text: resp.Text(), Usage: usageFrom(resp.UsageMetadata)}, nil
}

func buildParts(req summarizer.GenerateRequest) ([]*genai.Part, error) {
	var doc *genai.Part
	switch {
	case req.File != nil:
		doc = genai.NewPartFromURI(req.File.URI, req.File.MimeType)
	case req.Inline != nil:
		doc = genai.NewPartFromBytes(req.Inline.Data, req.Inline.MimeType)
	default:
		return nil, errors.New("generate request carries no document")
	}
	return []*genai.Part{doc, genai.NewPartFromText(req.Instruction)}, nil
}

func usageFrom(meta *genai.GenerateContentResponseUsageMetadata) metrics.TokenUsage {
	if meta == nil {
		return metrics.TokenUsage{}
	}
	return metrics.TokenUsage{
		PromptTokens:     int(meta.PromptTokenCount),
		CompletionTokens: int(meta.CandidatesTokenCount),
		TotalTokens:      int(meta.TotalTokenCount),
	}
}

var _ summarizer.Provider = (*Client)(nil)
