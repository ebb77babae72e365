package exam

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	labeledOptionPattern = regexp.MustCompile(`^([A-D]|[1-4])\.\s*(.+)$`)
	answerLinePattern    = regexp.MustCompile(`(?i)^(?:Correct answer|Answer):\s*(.+)$`)
)

// optionLabels assigns labels to unlabeled options in encounter order.
var optionLabels = []string{"A", "B", "C", "D", "E", "F"}

// ParseQuestion parses a single exam question from text.
//
// Two layouts are supported. Labeled:
//
//	[Scenario...]
//	[Question?]
//	A. Option A
//	B. Option B
//	Correct answer: A
//
// Unlabeled, where a bare "answer" line introduces the options:
//
//	[Scenario...]
//	[Question?]
//	answer
//	Option 1 text
//	Option 2 text
//
// Unlabeled options are assigned labels A, B, C... in order. The scenario
// runs until the first line ending in "?", which starts the question.
func ParseQuestion(text, id string) (Question, error) {
	var (
		scenarioLines    []string
		questionLines    []string
		options          []string
		labels           []string
		correctAnswer    string
		explanationLines []string
	)

	section := "scenario"
	unlabeled := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := labeledOptionPattern.FindStringSubmatch(line); m != nil && (section == "question" || section == "options") {
			section = "options"
			labels = append(labels, normalizeLabel(m[1]))
			options = append(options, strings.TrimSpace(m[2]))
			continue
		}

		if m := answerLinePattern.FindStringSubmatch(line); m != nil {
			section = "explanation"
			correctAnswer = strings.TrimSpace(m[1])
			continue
		}

		if strings.EqualFold(line, "answer") && section == "question" {
			section = "options"
			unlabeled = true
			continue
		}

		switch section {
		case "scenario":
			if strings.HasSuffix(line, "?") {
				section = "question"
				questionLines = append(questionLines, line)
			} else {
				scenarioLines = append(scenarioLines, line)
			}
		case "question":
			questionLines = append(questionLines, line)
		case "options":
			if unlabeled {
				options = append(options, line)
			}
		case "explanation":
			explanationLines = append(explanationLines, line)
		}
	}

	question := strings.Join(questionLines, " ")
	if question == "" {
		return Question{}, fmt.Errorf("%w: no question line found", ErrMalformedQuestion)
	}
	if len(options) < 2 {
		return Question{}, fmt.Errorf("%w: found %d options, need at least 2", ErrMalformedQuestion, len(options))
	}

	optionMap := make(map[string]string, len(options))
	for i, opt := range options {
		var label string
		if !unlabeled && i < len(labels) {
			label = labels[i]
		} else if i < len(optionLabels) {
			label = optionLabels[i]
		} else {
			return Question{}, fmt.Errorf("%w: too many options (%d)", ErrMalformedQuestion, len(options))
		}
		if _, dup := optionMap[label]; dup {
			return Question{}, fmt.Errorf("%w: duplicate option label %s", ErrMalformedQuestion, label)
		}
		optionMap[label] = opt
	}

	if id == "" {
		id = "unknown"
	}
	return Question{
		ID:            id,
		Scenario:      strings.Join(scenarioLines, " "),
		Question:      question,
		Options:       optionMap,
		CorrectAnswer: correctAnswer,
		Explanation:   strings.Join(explanationLines, " "),
	}, nil
}

// normalizeLabel maps numeric labels onto letters so both labeled layouts
// produce the same mapping.
func normalizeLabel(label string) string {
	switch label {
	case "1":
		return "A"
	case "2":
		return "B"
	case "3":
		return "C"
	case "4":
		return "D"
	}
	return label
}
