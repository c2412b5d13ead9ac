package chatgpt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/yanqian/docdigest/internal/domain/summarizer"
	"github.com/yanqian/docdigest/pkg/metrics"
)

// Client summarizes documents with the OpenAI Files and Responses APIs.
type Client struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewClient builds a new client. baseURL is optional.
func NewClient(apiKey, model, baseURL string, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key cannot be empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger.With("component", "llm.openai"),
	}, nil
}

// UploadFile stores the document as a user_data file and returns its id.
func (c *Client) UploadFile(ctx context.Context, doc summarizer.StagedDocument) (summarizer.FileRef, error) {
	rc, err := doc.Open(ctx)
	if err != nil {
		return summarizer.FileRef{}, fmt.Errorf("open document: %w", err)
	}
	defer rc.Close()

	file, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(rc, doc.Filename(), doc.MimeType()),
		Purpose: openai.FilePurposeUserData,
	})
	if err != nil {
		return summarizer.FileRef{}, fmt.Errorf("upload file: %w", err)
	}
	return summarizer.FileRef{Name: file.ID, MimeType: doc.MimeType()}, nil
}

// DeleteFile removes an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, ref summarizer.FileRef) error {
	if ref.Name == "" {
		return nil
	}
	if _, err := c.client.Files.Delete(ctx, ref.Name); err != nil {
		return fmt.Errorf("delete file %s: %w", ref.Name, err)
	}
	return nil
}

// Generate runs one Responses API call with the document and the instruction.
func (c *Client) Generate(ctx context.Context, req summarizer.GenerateRequest) (summarizer.Generation, error) {
	content, err := buildContent(req)
	if err != nil {
		return summarizer.Generation{}, err
	}
	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser),
			},
		},
	})
	if err != nil {
		return summarizer.Generation{}, fmt.Errorf("do request: %w", err)
	}
	if resp.Status == "incomplete" {
		return summarizer.Generation{}, fmt.Errorf("response is incomplete (reason = %s)", resp.IncompleteDetails.Reason)
	}
	c.logger.Debug("openai response received", "model", c.model, "status", resp.Status)
	return summarizer.Generation{
		Text: resp.OutputText(),
		Usage: metrics.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func buildContent(req summarizer.GenerateRequest) (responses.ResponseInputMessageContentListParam, error) {
	var file responses.ResponseInputFileParam
	switch {
	case req.File != nil:
		file.FileID = openai.String(req.File.Name)
	case req.Inline != nil:
		file.Filename = openai.String(req.Inline.Filename)
		file.FileData = openai.String(dataURL(req.Inline.MimeType, req.Inline.Data))
	default:
		return nil, errors.New("generate request carries no document")
	}
	return responses.ResponseInputMessageContentListParam{
		{OfInputFile: &file},
		{OfInputText: &responses.ResponseInputTextParam{Text: req.Instruction}},
	}, nil
}

func dataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var _ summarizer.Provider = (*Client)(nil)
