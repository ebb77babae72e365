package summarize

import (
	"context"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/examind/internal/corpus"
)

// ExtractiveSummarizer picks the most informative sentences out of the chunk
// itself. It needs no model, so it serves as the fallback when the LLM
// summarizer is unavailable or fails.
type ExtractiveSummarizer struct {
	// MaxSentences caps the extracted summary length.
	MaxSentences int
}

// NewExtractiveSummarizer creates an ExtractiveSummarizer with defaults.
func NewExtractiveSummarizer() *ExtractiveSummarizer {
	return &ExtractiveSummarizer{MaxSentences: 2}
}

// Summarize extracts up to MaxSentences key sentences, preserving their
// original order. Content under 30 words is returned unchanged.
func (s *ExtractiveSummarizer) Summarize(_ context.Context, chunk corpus.Chunk) (string, error) {
	if chunk.WordCount() < 30 {
		return chunk.Content, nil
	}

	sentences := splitSentences(chunk.Content)
	if len(sentences) <= s.MaxSentences {
		return strings.Join(sentences, " "), nil
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, sentence := range sentences {
		ranked[i] = scored{index: i, score: scoreSentence(sentence, i)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	picked := ranked[:s.MaxSentences]
	sort.Slice(picked, func(a, b int) bool {
		return picked[a].index < picked[b].index
	})

	parts := make([]string, len(picked))
	for i, p := range picked {
		parts[i] = sentences[p.index]
	}
	return strings.Join(parts, " "), nil
}

var _ Summarizer = (*ExtractiveSummarizer)(nil)

// definitionalPhrases mark sentences likely to define or explain a concept.
var definitionalPhrases = []string{
	"is defined as",
	"refers to",
	"is a process",
	"is the process",
	"means that",
	"is known as",
	"consists of",
	"is responsible for",
}

// scoreSentence favors definitional sentences of moderate length, with a
// small bonus for opening sentences since headers and leads carry the topic.
func scoreSentence(sentence string, position int) float64 {
	var score float64

	lower := strings.ToLower(sentence)
	for _, phrase := range definitionalPhrases {
		if strings.Contains(lower, phrase) {
			score += 2.0
			break
		}
	}

	words := len(strings.Fields(sentence))
	if words >= 8 && words <= 30 {
		score += 1.0
	}

	if position == 0 {
		score += 0.5
	}
	return score
}

// splitSentences breaks text into sentences on terminal punctuation. It is
// intentionally simple; the corpus is transcript prose, not formal writing.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
