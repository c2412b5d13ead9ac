package summarizer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/docdigest/pkg/errors"
	"github.com/yanqian/docdigest/pkg/metrics"
)

func TestSummarizeReferenceMode(t *testing.T) {
	stager := &fakeStager{}
	provider := &fakeProvider{
		ref: FileRef{Name: "files/abc", URI: "https://files.example/abc", MimeType: "application/pdf"},
		gen: Generation{Text: "- point one\n- point two", Usage: metrics.TokenUsage{PromptTokens: 10, TotalTokens: 14}},
	}
	svc := NewService(Config{Instruction: "Can you summarize this document?", Transmission: TransmissionReference, DeleteRemote: true}, stager, provider, newTestLogger())

	res, err := svc.Summarize(context.Background(), pdfDocument("%PDF-1.4\n%"))
	require.NoError(t, err)
	require.Equal(t, "- point one\n- point two", res.Summary)
	require.NotNil(t, res.Usage)
	require.Equal(t, 14, res.Usage.TotalTokens)

	require.Equal(t, 1, provider.uploads)
	require.NotNil(t, provider.lastRequest.File)
	require.Nil(t, provider.lastRequest.Inline)
	require.Equal(t, "files/abc", provider.lastRequest.File.Name)
	require.Equal(t, "Can you summarize this document?", provider.lastRequest.Instruction)
	require.Equal(t, []string{"files/abc"}, provider.deleted)
	require.Equal(t, 1, stager.staged.releases)
}

func TestSummarizeInlineMode(t *testing.T) {
	stager := &fakeStager{}
	provider := &fakeProvider{gen: Generation{Text: "inline summary"}}
	svc := NewService(Config{Instruction: "Summarize", Transmission: TransmissionInline}, stager, provider, newTestLogger())

	res, err := svc.Summarize(context.Background(), pdfDocument("0123456789"))
	require.NoError(t, err)
	require.Equal(t, "inline summary", res.Summary)
	require.Nil(t, res.Usage)

	require.Zero(t, provider.uploads)
	require.Nil(t, provider.lastRequest.File)
	require.NotNil(t, provider.lastRequest.Inline)
	require.Equal(t, []byte("0123456789"), provider.lastRequest.Inline.Data)
	require.Equal(t, "application/pdf", provider.lastRequest.Inline.MimeType)
	require.Equal(t, "report.pdf", provider.lastRequest.Inline.Filename)
	require.Empty(t, provider.deleted)
	require.Equal(t, 1, stager.staged.releases)
}

func TestSummarizeRejectsMissingDocument(t *testing.T) {
	stager := &fakeStager{}
	svc := NewService(Config{Instruction: "Summarize"}, stager, &fakeProvider{}, newTestLogger())

	_, err := svc.Summarize(context.Background(), Document{})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	require.Nil(t, stager.staged)
}

func TestSummarizeRejectsEmptyUnnamedDocument(t *testing.T) {
	stager := &fakeStager{}
	svc := NewService(Config{Instruction: "Summarize"}, stager, &fakeProvider{}, newTestLogger())

	_, err := svc.Summarize(context.Background(), Document{Content: strings.NewReader("")})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	require.Nil(t, stager.staged)

	provider := &fakeProvider{gen: Generation{Text: "empty but named"}}
	svc = NewService(Config{Instruction: "Summarize", Transmission: TransmissionInline}, stager, provider, newTestLogger())
	res, err := svc.Summarize(context.Background(), Document{Filename: "blank.pdf", MimeType: "application/pdf", Content: strings.NewReader("")})
	require.NoError(t, err)
	require.Equal(t, "empty but named", res.Summary)
}

func TestSummarizeReleasesOnProviderFailure(t *testing.T) {
	cases := []struct {
		name     string
		mode     TransmissionMode
		provider *fakeProvider
	}{
		{"upload fails", TransmissionReference, &fakeProvider{uploadErr: errors.New("quota exceeded")}},
		{"generate fails", TransmissionReference, &fakeProvider{genErr: errors.New("malformed file")}},
		{"inline generate fails", TransmissionInline, &fakeProvider{genErr: errors.New("boom")}},
		{"empty summary", TransmissionInline, &fakeProvider{gen: Generation{Text: "  \n"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stager := &fakeStager{}
			svc := NewService(Config{Instruction: "Summarize", Transmission: tc.mode, DeleteRemote: true}, stager, tc.provider, newTestLogger())

			_, err := svc.Summarize(context.Background(), pdfDocument("0123456789"))
			require.Error(t, err)
			require.True(t, apperrors.IsCode(err, apperrors.CodeProcessingFailed))
			require.Equal(t, 1, stager.staged.releases)
		})
	}
}

func TestSummarizeDeletesRemoteEvenWhenGenerateFails(t *testing.T) {
	provider := &fakeProvider{ref: FileRef{Name: "files/xyz"}, genErr: errors.New("boom")}
	svc := NewService(Config{Instruction: "Summarize", Transmission: TransmissionReference, DeleteRemote: true}, &fakeStager{}, provider, newTestLogger())

	_, err := svc.Summarize(context.Background(), pdfDocument("0123456789"))
	require.Error(t, err)
	require.Equal(t, []string{"files/xyz"}, provider.deleted)
}

func TestSummarizeIgnoresRemoteDeleteFailure(t *testing.T) {
	provider := &fakeProvider{ref: FileRef{Name: "files/xyz"}, gen: Generation{Text: "ok"}, deleteErr: errors.New("gone")}
	svc := NewService(Config{Instruction: "Summarize", Transmission: TransmissionReference, DeleteRemote: true}, &fakeStager{}, provider, newTestLogger())

	res, err := svc.Summarize(context.Background(), pdfDocument("0123456789"))
	require.NoError(t, err)
	require.Equal(t, "ok", res.Summary)
}

func TestSummarizeKeepsRemoteWhenDeleteDisabled(t *testing.T) {
	provider := &fakeProvider{ref: FileRef{Name: "files/xyz"}, gen: Generation{Text: "ok"}}
	svc := NewService(Config{Instruction: "Summarize", Transmission: TransmissionReference}, &fakeStager{}, provider, newTestLogger())

	_, err := svc.Summarize(context.Background(), pdfDocument("0123456789"))
	require.NoError(t, err)
	require.Empty(t, provider.deleted)
}

func TestSummarizeStageFailures(t *testing.T) {
	svc := NewService(Config{Instruction: "Summarize"}, &fakeStager{err: ErrDocumentTooLarge}, &fakeProvider{}, newTestLogger())
	_, err := svc.Summarize(context.Background(), pdfDocument("0123456789"))
	require.True(t, apperrors.IsCode(err, apperrors.CodeTooLarge))

	svc = NewService(Config{Instruction: "Summarize"}, &fakeStager{err: errors.New("disk full")}, &fakeProvider{}, newTestLogger())
	_, err = svc.Summarize(context.Background(), pdfDocument("0123456789"))
	require.True(t, apperrors.IsCode(err, apperrors.CodeProcessingFailed))
}

func TestSummarizeUsesInstructionOverride(t *testing.T) {
	provider := &fakeProvider{gen: Generation{Text: "ok"}}
	svc := NewService(Config{Instruction: "Can you summarize this document?", Transmission: TransmissionInline}, &fakeStager{}, provider, newTestLogger())

	doc := pdfDocument("0123456789")
	doc.Instruction = "Summarize this document as a bulleted list."
	_, err := svc.Summarize(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, "Summarize this document as a bulleted list.", provider.lastRequest.Instruction)
}

func TestSummarizeAppliesTimeout(t *testing.T) {
	provider := &fakeProvider{block: true}
	stager := &fakeStager{}
	svc := NewService(Config{Instruction: "Summarize", Transmission: TransmissionInline, Timeout: 20 * time.Millisecond}, stager, provider, newTestLogger())

	_, err := svc.Summarize(context.Background(), pdfDocument("0123456789"))
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, stager.staged.releases)
}

func TestSummarizeBoundsHangingRemoteDelete(t *testing.T) {
	provider := &fakeProvider{ref: FileRef{Name: "files/xyz"}, gen: Generation{Text: "ok"}, blockDelete: true}
	stager := &fakeStager{}
	svc := NewService(Config{Instruction: "Summarize", Transmission: TransmissionReference, DeleteRemote: true}, stager, provider, newTestLogger())
	svc.(*service).cleanupTimeout = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := svc.Summarize(context.Background(), pdfDocument("0123456789"))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("summarize blocked on a hanging remote delete")
	}
	require.Equal(t, []error{context.DeadlineExceeded}, provider.deleteErrs)
	require.Equal(t, 1, stager.staged.releases)
	require.True(t, stager.staged.releaseHadDeadline)
}

func TestSummarizeReleasesWithLiveContextAfterCancellation(t *testing.T) {
	provider := &fakeProvider{block: true}
	stager := &fakeStager{}
	svc := NewService(Config{Instruction: "Summarize", Transmission: TransmissionInline}, stager, provider, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Summarize(ctx, pdfDocument("0123456789"))
	require.Error(t, err)
	require.Equal(t, 1, stager.staged.releases)
	require.NoError(t, stager.staged.releaseCtxErr)
	require.True(t, stager.staged.releaseHadDeadline)
}

func pdfDocument(body string) Document {
	return Document{
		Filename: "report.pdf",
		MimeType: "application/pdf",
		Size:     int64(len(body)),
		Content:  strings.NewReader(body),
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStager struct {
	err    error
	staged *fakeStaged
}

func (f *fakeStager) Stage(_ context.Context, doc Document) (StagedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(doc.Content)
	if err != nil {
		return nil, err
	}
	f.staged = &fakeStaged{data: data, filename: doc.Filename, mimeType: doc.MimeType}
	return f.staged, nil
}

type fakeStaged struct {
	data     []byte
	filename string
	mimeType string
	releases int

	releaseHadDeadline bool
	releaseCtxErr      error
}

func (f *fakeStaged) Filename() string { return f.filename }
func (f *fakeStaged) MimeType() string { return f.mimeType }
func (f *fakeStaged) Size() int64      { return int64(len(f.data)) }
func (f *fakeStaged) Location() string { return "fake" }

func (f *fakeStaged) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (f *fakeStaged) Release(ctx context.Context) error {
	f.releases++
	_, f.releaseHadDeadline = ctx.Deadline()
	f.releaseCtxErr = ctx.Err()
	return nil
}

type fakeProvider struct {
	ref         FileRef
	gen         Generation
	uploadErr   error
	genErr      error
	deleteErr   error
	block       bool
	blockDelete bool
	deleteErrs  []error
	uploads     int
	deleted     []string
	lastRequest GenerateRequest
}

func (f *fakeProvider) UploadFile(context.Context, StagedDocument) (FileRef, error) {
	f.uploads++
	if f.uploadErr != nil {
		return FileRef{}, f.uploadErr
	}
	return f.ref, nil
}

func (f *fakeProvider) DeleteFile(ctx context.Context, ref FileRef) error {
	f.deleted = append(f.deleted, ref.Name)
	if f.blockDelete {
		<-ctx.Done()
		f.deleteErrs = append(f.deleteErrs, ctx.Err())
		return ctx.Err()
	}
	return f.deleteErr
}

func (f *fakeProvider) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	f.lastRequest = req
	if f.block {
		<-ctx.Done()
		return Generation{}, ctx.Err()
	}
	if f.genErr != nil {
		return Generation{}, f.genErr
	}
	return f.gen, nil
}
