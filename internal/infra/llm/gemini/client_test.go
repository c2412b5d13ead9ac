package gemini

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/yanqian/docdigest/internal/domain/summarizer"
)

func TestBuildPartsReference(t *testing.T) {
	parts, err := buildParts(summarizer.GenerateRequest{
		Instruction: "Can you summarize this document?",
		File:        &summarizer.FileRef{Name: "files/abc", URI: "https://generativelanguage.googleapis.com/v1beta/files/abc", MimeType: "application/pdf"},
	})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].FileData)
	require.Equal(t, "https://generativelanguage.googleapis.com/v1beta/files/abc", parts[0].FileData.FileURI)
	require.Equal(t, "application/pdf", parts[0].FileData.MIMEType)
	require.Equal(t, "Can you summarize this document?", parts[1].Text)
}

func TestBuildPartsInline(t *testing.T) {
	parts, err := buildParts(summarizer.GenerateRequest{
		Instruction: "Summarize as a bulleted list.",
		Inline:      &summarizer.InlineDocument{Data: []byte("%PDF-1.4"), MimeType: "application/pdf", Filename: "a.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	require.Equal(t, []byte("%PDF-1.4"), parts[0].InlineData.Data)
	require.Equal(t, "application/pdf", parts[0].InlineData.MIMEType)
}

func TestBuildPartsRequiresDocument(t *testing.T) {
	_, err := buildParts(summarizer.GenerateRequest{Instruction: "x"})
	require.Error(t, err)
}

func TestUsageFrom(t *testing.T) {
	require.True(t, usageFrom(nil).IsZero())
	usage := usageFrom(&genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 120, CandidatesTokenCount: 30, TotalTokenCount: 150})
	require.Equal(t, 120, usage.PromptTokens)
	require.Equal(t, 30, usage.CompletionTokens)
	require.Equal(t, 150, usage.TotalTokens)
}
