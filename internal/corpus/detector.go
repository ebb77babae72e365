package corpus

import (
	"regexp"
	"strings"
)

// Heading is a structural heading recognized in a raw document.
type Heading struct {
	// Text is the heading text without numbering or timestamps.
	Text string

	// Timestamp is the inline "HH:MM-HH:MM" range, when the convention
	// carries one on the heading line itself.
	Timestamp string
}

// HeadingDetector recognizes one heading convention.
//
// Transcript exports use two mutually exclusive conventions; prose documents
// use heuristic headings. Isolating each behind this interface keeps chunk
// assembly independent of the layout, so a new export format only needs a
// new detector.
type HeadingDetector interface {
	// Name identifies the convention in errors and logs.
	Name() string

	// Heading reports whether line starts a new section. next is the
	// following structural line ("" at end of document); conventions that
	// place timestamps below the heading need it to disambiguate.
	Heading(line, next string) (Heading, bool)

	// TimestampLine reports whether line is a standalone timestamp marker
	// belonging to the current section, returning the "start-end" range.
	TimestampLine(line string) (string, bool)
}

var (
	// "Heading text 00:00-01:23" on a single line.
	inlineHeadingPattern = regexp.MustCompile(`^(.+?)\s+(\d{2}:\d{2}-\d{2}:\d{2})$`)

	// "3. Heading text" with timestamps on their own following line(s).
	numberedHeadingPattern = regexp.MustCompile(`^\d+\.\s+(\S.*)$`)

	// One or more "HH:MM-HH:MM" ranges and nothing else.
	timestampLinePattern = regexp.MustCompile(`^\d{2}:\d{2}-\d{2}:\d{2}(?:\s+\d{2}:\d{2}-\d{2}:\d{2})*$`)

	timestampRangePattern = regexp.MustCompile(`\d{2}:\d{2}-\d{2}:\d{2}`)
)

// inlineTimestampDetector recognizes headings carrying their timestamp range
// on the same line.
type inlineTimestampDetector struct{}

func (inlineTimestampDetector) Name() string { return "inline-timestamp" }

func (inlineTimestampDetector) Heading(line, _ string) (Heading, bool) {
	m := inlineHeadingPattern.FindStringSubmatch(line)
	if m == nil {
		return Heading{}, false
	}
	return Heading{Text: strings.TrimSpace(m[1]), Timestamp: m[2]}, true
}

func (inlineTimestampDetector) TimestampLine(string) (string, bool) {
	return "", false
}

// numberedHeadingDetector recognizes "N. Heading" lines followed by
// standalone timestamp lines. A numbered line only counts as a heading when
// a timestamp line follows, so enumerations inside body text are not
// mistaken for section breaks.
type numberedHeadingDetector struct{}

func (numberedHeadingDetector) Name() string { return "numbered-heading" }

func (numberedHeadingDetector) Heading(line, next string) (Heading, bool) {
	m := numberedHeadingPattern.FindStringSubmatch(line)
	if m == nil {
		return Heading{}, false
	}
	if !timestampLinePattern.MatchString(next) {
		return Heading{}, false
	}
	return Heading{Text: strings.TrimSpace(m[1])}, true
}

func (numberedHeadingDetector) TimestampLine(line string) (string, bool) {
	if !timestampLinePattern.MatchString(line) {
		return "", false
	}
	// Collapse multiple ranges on one line into first start / last end.
	ranges := timestampRangePattern.FindAllString(line, -1)
	first := strings.SplitN(ranges[0], "-", 2)[0]
	last := strings.SplitN(ranges[len(ranges)-1], "-", 2)[1]
	return first + "-" + last, true
}

// proseHeadingDetector recognizes structural headings in prose documents:
// short all-caps lines, numbered outline headings ("1.2 Access Control"),
// and short lines ending with a colon.
type proseHeadingDetector struct{}

var outlineHeadingPattern = regexp.MustCompile(`^[\d.]+\s+[A-Z]`)

func (proseHeadingDetector) Name() string { return "prose" }

func (proseHeadingDetector) Heading(line, _ string) (Heading, bool) {
	isHeader := (isAllUpper(line) && len(strings.Fields(line)) <= 5) ||
		outlineHeadingPattern.MatchString(line) ||
		(strings.HasSuffix(line, ":") && len(line) < 80)
	if !isHeader {
		return Heading{}, false
	}
	return Heading{Text: strings.TrimSuffix(line, ":")}, true
}

func (proseHeadingDetector) TimestampLine(string) (string, bool) {
	return "", false
}

// isAllUpper reports whether s contains at least one letter and no lowercase
// letters.
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

// transcriptDetectors are the two mutually exclusive transcript conventions.
// Order matters: the inline convention is checked first because its trailing
// timestamp signature is the more specific of the two.
func transcriptDetectors() []HeadingDetector {
	return []HeadingDetector{
		inlineTimestampDetector{},
		numberedHeadingDetector{},
	}
}
