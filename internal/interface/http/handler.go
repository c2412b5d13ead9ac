package http

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/yanqian/docdigest/internal/domain/summarizer"
	apperrors "github.com/yanqian/docdigest/pkg/errors"
)

// multipartOverhead leaves room for boundaries and other form fields around the file part.
const multipartOverhead = 1 << 20

// HandlerConfig controls how uploads are accepted.
type HandlerConfig struct {
	FieldName                string
	MaxBytes                 int64
	AllowInstructionOverride bool
}

// Handler wires the HTTP transport to the summarizer.
type Handler struct {
	summarizerSvc summarizer.Service
	cfg           HandlerConfig
	logger        *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(summarizerSvc summarizer.Service, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if cfg.FieldName == "" {
		cfg.FieldName = "document"
	}
	return &Handler{
		summarizerSvc: summarizerSvc,
		cfg:           cfg,
		logger:        logger.With("component", "http.handler"),
	}
}

// Upload accepts one document and responds with its summary.
func (h *Handler) Upload(c *gin.Context) {
	if h.cfg.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxBytes+multipartOverhead)
	}

	fileHeader, err := c.FormFile(h.cfg.FieldName)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			abortWithError(c, NewHTTPError(http.StatusRequestEntityTooLarge, apperrors.CodeTooLarge, msgTooLarge, err))
			return
		}
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, msgNoFile, err))
		return
	}
	if h.cfg.MaxBytes > 0 && fileHeader.Size > h.cfg.MaxBytes {
		abortWithError(c, NewHTTPError(http.StatusRequestEntityTooLarge, apperrors.CodeTooLarge, msgTooLarge, nil))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, apperrors.CodeProcessingFailed, msgProcessingFailed, err))
		return
	}
	defer file.Close()

	mimeType, err := detectMimeType(file, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, apperrors.CodeProcessingFailed, msgProcessingFailed, err))
		return
	}

	doc := summarizer.Document{
		Filename: filepath.Base(fileHeader.Filename),
		MimeType: mimeType,
		Size:     fileHeader.Size,
		Content:  file,
	}
	if h.cfg.AllowInstructionOverride {
		doc.Instruction = c.PostForm("instruction")
	}

	result, err := h.summarizerSvc.Summarize(c.Request.Context(), doc)
	if err != nil {
		switch {
		case apperrors.IsCode(err, apperrors.CodeInvalidInput):
			abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, msgNoFile, err))
		case apperrors.IsCode(err, apperrors.CodeTooLarge):
			abortWithError(c, NewHTTPError(http.StatusRequestEntityTooLarge, apperrors.CodeTooLarge, msgTooLarge, err))
		default:
			abortWithError(c, NewHTTPError(http.StatusInternalServerError, apperrors.CodeProcessingFailed, msgProcessingFailed, err))
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// detectMimeType trusts the declared part type unless it is missing or generic.
func detectMimeType(file multipart.File, declared string) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, "application/octet-stream") {
		return declared, nil
	}
	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	essence, _, _ := strings.Cut(detected.String(), ";")
	return strings.TrimSpace(essence), nil
}
