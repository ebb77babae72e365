// Package exam parses scenario-based multiple-choice questions and selects
// answers over retrieved evidence with a structured reasoning protocol.
package exam

import (
	"errors"
	"sort"
)

// Sentinel errors for exam processing.
var (
	// ErrMalformedQuestion indicates a question text that could not be
	// parsed into scenario, question and at least two options.
	ErrMalformedQuestion = errors.New("malformed exam question")

	// ErrNoAnswer is returned when the selector output contains no
	// parseable single-label selection. Never guessed; reported distinctly
	// from a wrong answer.
	ErrNoAnswer = errors.New("no parseable answer selection")
)

// Question is a structured exam question. Immutable once parsed.
type Question struct {
	ID            string            `json:"id"`
	Scenario      string            `json:"scenario"`
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation,omitempty"`
	Chapter       string            `json:"chapter,omitempty"`
}

// Labels returns the option labels in ascending order.
func (q Question) Labels() []string {
	labels := make([]string, 0, len(q.Options))
	for label := range q.Options {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Result is the outcome of answering one question.
type Result struct {
	QuestionID      string `json:"question_id"`
	PredictedAnswer string `json:"predicted_answer"`
	ActualAnswer    string `json:"actual_answer"`
	Correct         bool   `json:"correct"`
	Reasoning       string `json:"reasoning"`
	Confidence      string `json:"confidence"`
	NumSources      int    `json:"num_sources"`
}

// Summary aggregates results across an evaluation run. Unanswered questions
// are counted separately from incorrect ones.
type Summary struct {
	Total      int      `json:"total"`
	Correct    int      `json:"correct"`
	Incorrect  int      `json:"incorrect"`
	Unanswered int      `json:"unanswered"`
	Failed     int      `json:"failed"`
	Accuracy   float64  `json:"accuracy"`
	Results    []Result `json:"results"`
}
