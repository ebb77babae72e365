package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()

	writeCorpusFile(t, dir, "1.2.3_Phishing_[video].txt", inlineTranscript)
	writeCorpusFile(t, dir, "1.2.4_Final_Exam_[exam].txt", "exam placeholder")
	writeCorpusFile(t, dir, "notes-unrelated.txt", "not a course file")
	writeCorpusFile(t, dir, "README.md", "ignored extension")

	chunks, err := LoadDirectory(context.Background(), dir, NewNormalizer(nil), nil)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "1.2.3_chunk_1", chunks[0].ChunkID)
	assert.Equal(t, "Phishing Basics", chunks[0].SectionHeader)
	assert.Equal(t, "1", chunks[0].Metadata.ChapterNum)
	assert.Equal(t, ContentTypeVideo, chunks[0].Metadata.ContentType)
}

func TestLoadDirectoryDeterministicOrder(t *testing.T) {
	dir := t.TempDir()

	// Written out of lexical order; loading must not depend on write order.
	writeCorpusFile(t, dir, "2.1.1_Threats_[video].txt", inlineTranscript)
	writeCorpusFile(t, dir, "1.1.1_Basics_[video].txt", inlineTranscript)

	chunks, err := LoadDirectory(context.Background(), dir, NewNormalizer(nil), nil)
	require.NoError(t, err)

	require.Len(t, chunks, 4)
	assert.Equal(t, "1.1.1_chunk_1", chunks[0].ChunkID)
	assert.Equal(t, "2.1.1_chunk_1", chunks[2].ChunkID)
}

func TestLoadDirectoryMissing(t *testing.T) {
	_, err := LoadDirectory(context.Background(), filepath.Join(t.TempDir(), "absent"), NewNormalizer(nil), nil)
	require.Error(t, err)
}

func TestLoadDirectoryCanceled(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "1.1.1_Basics_[video].txt", inlineTranscript)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadDirectory(ctx, dir, NewNormalizer(nil), nil)
	require.ErrorIs(t, err, context.Canceled)
}
