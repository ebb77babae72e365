package corpus

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/examind/internal/logging"
)

// introductionHeader is attached to content that precedes any explicit
// heading.
const introductionHeader = "Introduction"

var (
	// Transcript exports prefix lines with "N→" markers.
	lineMarkerPattern = regexp.MustCompile(`^\s*\d+→`)

	// Interactive prompts carry no course content.
	interactivePattern = regexp.MustCompile(`^Click one of the buttons`)
)

// Normalizer converts raw documents into ordered chunk sequences.
//
// The zero value is not usable; construct with NewNormalizer.
type Normalizer struct {
	log   *logging.Logger
	stats Stats
}

// NewNormalizer creates a normalizer. A nil logger disables logging.
func NewNormalizer(log *logging.Logger) *Normalizer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Normalizer{log: log.Named("corpus")}
}

// Stats returns counts accumulated across Normalize calls.
func (n *Normalizer) Stats() Stats {
	return n.stats
}

// Normalize converts one raw document into chunk records.
//
// Video transcripts must follow exactly one of the two heading conventions;
// the convention is detected from the first structural line and a document
// mixing both fails with ErrMixedLayout. A document in which no headings are
// recognized yields a skipped Document and a nil error.
func (n *Normalizer) Normalize(ctx context.Context, meta Metadata, raw string) (*Document, error) {
	switch meta.ContentType {
	case ContentTypeExam, ContentTypeSimulation:
		n.stats.Skipped++
		return &Document{
			Metadata:   meta,
			Skipped:    true,
			SkipReason: fmt.Sprintf("%s content is not indexable", meta.ContentType),
		}, nil
	case ContentTypeVideo, ContentTypeText:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentType, meta.ContentType)
	}

	lines := structuralLines(raw)
	if len(lines) == 0 {
		n.stats.Skipped++
		return &Document{Metadata: meta, Skipped: true, SkipReason: "empty document"}, nil
	}

	var detector HeadingDetector
	var others []HeadingDetector
	if meta.ContentType == ContentTypeVideo {
		detector, others = detectConvention(lines)
		if detector == nil {
			n.stats.Skipped++
			return &Document{Metadata: meta, Skipped: true, SkipReason: "unrecognized transcript layout"}, nil
		}
	} else {
		detector = proseHeadingDetector{}
	}

	chunks, err := n.chunk(ctx, meta, lines, detector, others)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		n.stats.Skipped++
		return &Document{Metadata: meta, Skipped: true, SkipReason: "no recognized headings"}, nil
	}

	total := 0
	for _, c := range chunks {
		total += c.Metadata.WordCount
	}
	meta.WordCount = total

	n.stats.Processed++
	return &Document{Metadata: meta, Chunks: chunks}, nil
}

// chunk accumulates body lines into the current chunk until the next
// recognized heading or end of document. A heading from any convention other
// than the detected one aborts with ErrMixedLayout.
func (n *Normalizer) chunk(ctx context.Context, meta Metadata, lines []string, detector HeadingDetector, others []HeadingDetector) ([]Chunk, error) {
	var chunks []Chunk
	header := Heading{Text: introductionHeader}
	sawHeading := false
	var body []string
	var ranges []string

	flush := func() {
		content := strings.Join(body, " ")
		defer func() {
			body = body[:0]
			ranges = ranges[:0]
		}()

		words := len(strings.Fields(content))
		if words == 0 {
			if sawHeading {
				n.stats.DroppedChunks++
				n.log.Warn(ctx, "dropping empty chunk",
					zap.String("section_header", header.Text),
					zap.String("section_num", meta.SectionNum))
			}
			return
		}

		chunkMeta := meta
		chunkMeta.WordCount = words
		chunks = append(chunks, Chunk{
			ChunkID:        fmt.Sprintf("%s_chunk_%d", meta.SectionNum, len(chunks)+1),
			SectionHeader:  header.Text,
			Content:        content,
			Metadata:       chunkMeta,
			TimestampRange: mergeRanges(header.Timestamp, ranges),
		})
	}

	for i, line := range lines {
		var next string
		if i+1 < len(lines) {
			next = lines[i+1]
		}

		if h, ok := detector.Heading(line, next); ok {
			flush()
			header = h
			sawHeading = true
			continue
		}
		if r, ok := detector.TimestampLine(line); ok {
			ranges = append(ranges, r)
			continue
		}
		for _, other := range others {
			if _, ok := other.Heading(line, next); ok {
				return nil, fmt.Errorf("%w: %s heading %q inside %s document",
					ErrMixedLayout, other.Name(), line, detector.Name())
			}
		}
		body = append(body, line)
	}
	flush()

	if !sawHeading {
		// Only the implicit introduction was produced; the layout carries no
		// structure worth indexing.
		return nil, nil
	}
	return chunks, nil
}

// detectConvention picks the transcript convention from the first structural
// line any detector claims as a heading.
func detectConvention(lines []string) (HeadingDetector, []HeadingDetector) {
	detectors := transcriptDetectors()
	for i, line := range lines {
		var next string
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		for j, d := range detectors {
			if _, ok := d.Heading(line, next); ok {
				others := make([]HeadingDetector, 0, len(detectors)-1)
				others = append(others, detectors[:j]...)
				others = append(others, detectors[j+1:]...)
				return d, others
			}
		}
	}
	return nil, nil
}

// structuralLines strips transcript line markers, interactive prompts and
// blank lines, returning trimmed content lines.
func structuralLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(lineMarkerPattern.ReplaceAllString(line, ""))
		if line == "" || interactivePattern.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// mergeRanges collapses an inline range plus standalone timestamp lines into
// one "start-end" marker pair.
func mergeRanges(inline string, ranges []string) string {
	all := ranges
	if inline != "" {
		all = append([]string{inline}, ranges...)
	}
	if len(all) == 0 {
		return ""
	}
	first := strings.SplitN(all[0], "-", 2)[0]
	last := strings.SplitN(all[len(all)-1], "-", 2)
	return first + "-" + last[len(last)-1]
}
