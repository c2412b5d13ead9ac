package chatgpt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/docdigest/internal/domain/summarizer"
)

func TestBuildContentReference(t *testing.T) {
	content, err := buildContent(summarizer.GenerateRequest{
		Instruction: "Can you summarize this document?",
		File:        &summarizer.FileRef{Name: "file-123"},
	})
	require.NoError(t, err)
	require.Len(t, content, 2)
	require.NotNil(t, content[0].OfInputFile)
	require.Equal(t, "file-123", content[0].OfInputFile.FileID.Value)
	require.NotNil(t, content[1].OfInputText)
	require.Equal(t, "Can you summarize this document?", content[1].OfInputText.Text)
}

func TestBuildContentInline(t *testing.T) {
	content, err := buildContent(summarizer.GenerateRequest{
		Instruction: "Summarize",
		Inline:      &summarizer.InlineDocument{Data: []byte("%PDF"), MimeType: "application/pdf", Filename: "a.pdf"},
	})
	require.NoError(t, err)
	require.Equal(t, "a.pdf", content[0].OfInputFile.Filename.Value)
	require.Equal(t, "data:application/pdf;base64,JVBERg==", content[0].OfInputFile.FileData.Value)
}

func TestBuildContentRequiresDocument(t *testing.T) {
	_, err := buildContent(summarizer.GenerateRequest{Instruction: "x"})
	require.Error(t, err)
}

func TestDataURLDefaultsMimeType(t *testing.T) {
	require.Equal(t, "data:application/octet-stream;base64,AQI=", dataURL("", []byte{1, 2}))
}
