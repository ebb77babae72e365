// Package corpus converts raw course documents into uniformly addressable
// chunks ready for summary-augmented indexing.
//
// Two source layouts are supported: video transcripts (section headings with
// timestamp ranges) and prose documents (structural headings detected
// heuristically). Both produce the same chunk schema.
package corpus

import (
	"errors"
	"strings"
)

// Sentinel errors for corpus normalization.
var (
	// ErrMixedLayout is returned when a document mixes both transcript
	// heading conventions. Mixed layouts are rejected rather than silently
	// dropping content.
	ErrMixedLayout = errors.New("document mixes heading conventions")

	// ErrUnknownContentType is returned for content types the normalizer
	// does not handle.
	ErrUnknownContentType = errors.New("unknown content type")

	// ErrInvalidFilename is returned when a filename does not match any
	// recognized naming pattern.
	ErrInvalidFilename = errors.New("filename does not match any known pattern")
)

// ContentType classifies a source document.
type ContentType string

const (
	// ContentTypeVideo is a video transcript with timestamped sections.
	ContentTypeVideo ContentType = "video"

	// ContentTypeText is a prose document with structural headings.
	ContentTypeText ContentType = "text"

	// ContentTypeExam marks exam placeholder files. They carry no indexable
	// content and are always skipped.
	ContentTypeExam ContentType = "exam"

	// ContentTypeSimulation marks simulation placeholder files, also skipped.
	ContentTypeSimulation ContentType = "simulation"
)

// Metadata describes the source position of a chunk within the corpus.
// ChapterNum, SectionNum and ContentType are registered as filterable
// payload fields at index time.
type Metadata struct {
	ChapterNum  string      `json:"chapter_num"`
	SectionNum  string      `json:"section_num"`
	Title       string      `json:"title"`
	ContentType ContentType `json:"content_type"`
	WordCount   int         `json:"word_count"`
}

// Chunk is the atomic retrievable unit of corpus text.
//
// ChunkID is stable across rebuilds: "<section_num>_chunk_<ordinal>". Summary
// is attached by a later summarization step and must be present (or fall back
// to truncated content) before indexing.
type Chunk struct {
	ChunkID        string   `json:"chunk_id"`
	SectionHeader  string   `json:"section_header"`
	Content        string   `json:"content"`
	Summary        string   `json:"summary"`
	Metadata       Metadata `json:"metadata"`
	TimestampRange string   `json:"timestamp_range,omitempty"`
}

// WordCount returns the number of whitespace-separated words in the content.
func (c Chunk) WordCount() int {
	return len(strings.Fields(c.Content))
}

// Document is the result of normalizing one raw source document.
//
// A document that produced zero chunks is reported as skipped, not as an
// error; downstream indexing tolerates skipped documents.
type Document struct {
	Metadata   Metadata
	Chunks     []Chunk
	Skipped    bool
	SkipReason string
}

// Stats accumulates counts across a normalization run. Partial success is a
// first-class outcome: skipped documents and dropped chunks are reported
// alongside successes.
type Stats struct {
	Processed     int
	Skipped       int
	DroppedChunks int
}
