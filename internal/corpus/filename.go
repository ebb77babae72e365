package corpus

import (
	"fmt"
	"regexp"
	"strings"
)

// Filename patterns produced by the course export:
//
//	Chapter_<N>.0_<Title>.txt              chapter introduction (prose)
//	<X>.<Y>.<Z>_<Title>_[<type>].txt       regular section file
var (
	chapterIntroPattern = regexp.MustCompile(`^Chapter_(\d+)\.0_(.+)$`)
	sectionFilePattern  = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)_(.+?)_\[(\w+)\]$`)
)

// ParseFileName extracts chapter/section metadata from a course filename.
//
// Chapter introductions are prose, so they normalize as text content.
// Returns ErrInvalidFilename if the name matches no known pattern and
// ErrUnknownContentType for unrecognized type tags.
func ParseFileName(filename string) (Metadata, error) {
	name := strings.TrimSuffix(filename, ".txt")

	if m := chapterIntroPattern.FindStringSubmatch(name); m != nil {
		return Metadata{
			ChapterNum:  m[1],
			SectionNum:  m[1] + ".0",
			Title:       strings.ReplaceAll(m[2], "_", " "),
			ContentType: ContentTypeText,
		}, nil
	}

	m := sectionFilePattern.FindStringSubmatch(name)
	if m == nil {
		return Metadata{}, fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	contentType, err := parseContentType(m[5])
	if err != nil {
		return Metadata{}, fmt.Errorf("parsing %q: %w", filename, err)
	}

	return Metadata{
		ChapterNum:  m[1],
		SectionNum:  fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3]),
		Title:       strings.ReplaceAll(m[4], "_", " "),
		ContentType: contentType,
	}, nil
}

func parseContentType(tag string) (ContentType, error) {
	switch ContentType(tag) {
	case ContentTypeVideo, ContentTypeText, ContentTypeExam, ContentTypeSimulation:
		return ContentType(tag), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownContentType, tag)
	}
}
