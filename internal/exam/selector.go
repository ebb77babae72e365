package exam

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/examind/internal/llm"
	"github.com/fyrsmithlabs/examind/internal/logging"
)

// Stage markers the selector requires in the completion. All four present
// means the reasoning protocol ran to completion, which is what the
// confidence signal reports.
var stageMarkers = []string{
	"SCENARIO ANALYSIS:",
	"OPTION EVALUATION:",
	"COMPARATIVE ANALYSIS:",
	"FINAL SELECTION:",
}

var finalAnswerPattern = regexp.MustCompile(`(?m)FINAL ANSWER:\s*([A-Za-z0-9]+)`)

// Confidence levels derived from reasoning structure.
const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
)

// Selector answers scenario questions by running a four-stage reasoning
// protocol in a single completion: scenario analysis, per-option evaluation,
// comparative analysis, final selection. The stages are strictly linear with
// no backtracking.
type Selector struct {
	client llm.Client
	log    *logging.Logger
}

// NewSelector creates a Selector. A nil logger disables logging.
func NewSelector(client llm.Client, log *logging.Logger) *Selector {
	if log == nil {
		log = logging.NewNop()
	}
	return &Selector{
		client: client,
		log:    log.Named("selector"),
	}
}

// SelectAnswer answers a question against the assembled evidence context.
//
// The completion must terminate with exactly one option label; output with
// no parseable label returns ErrNoAnswer together with the raw reasoning
// text, so callers can report it distinctly from a wrong answer. Sparse
// evidence is surfaced in the reasoning text, never by guessing.
func (s *Selector) SelectAnswer(ctx context.Context, q Question, contextText string) (Result, error) {
	ctx = logging.ContextWithQuestionID(ctx, q.ID)

	prompt := answerPrompt(q, contextText)

	completion, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("generating answer: %w", err)
	}

	result := Result{
		QuestionID:   q.ID,
		ActualAnswer: q.CorrectAnswer,
		Reasoning:    completion,
		Confidence:   confidenceFrom(completion),
	}

	label, ok := parseFinalAnswer(completion, q.Options)
	if !ok {
		s.log.Warn(ctx, "selector produced no parseable label")
		return result, ErrNoAnswer
	}

	result.PredictedAnswer = label
	result.Correct = q.CorrectAnswer != "" && label == q.CorrectAnswer

	s.log.Info(ctx, "answer selected",
		zap.String("predicted", label),
		zap.String("confidence", result.Confidence),
		zap.Bool("correct", result.Correct))
	return result, nil
}

// AnswerQuery answers a free-text question from the assembled evidence
// context. The prompt instructs the model to stay faithful to the documents
// rather than answer from its own knowledge.
func (s *Selector) AnswerQuery(ctx context.Context, query, contextText string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("empty query")
	}

	prompt := fmt.Sprintf(`You have been tasked with helping us to answer the following query:
<query>
%s
</query>

You have access to the following documents which are meant to provide context as you answer the query:
<documents>
%s
</documents>

Please remain faithful to the underlying context, and only deviate from it if you are 100%% sure that you know the answer already.
Answer the question now, and avoid providing preamble such as 'Here is the answer', etc`,
		query, contextText)

	answer, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// answerPrompt renders the four-stage reasoning prompt.
func answerPrompt(q Question, contextText string) string {
	var options strings.Builder
	for _, label := range q.Labels() {
		fmt.Fprintf(&options, "%s. %s\n", label, q.Options[label])
	}

	return fmt.Sprintf(`You are answering a scenario-based multiple-choice exam question. You have access to the following reference documents:
<documents>
%s
</documents>

<scenario>
%s
</scenario>

<question>
%s
</question>

<options>
%s</options>

Work through the question in exactly four stages, in order, using these exact section headers:

SCENARIO ANALYSIS:
Identify the core problem, constraints, and success criteria from the scenario and question.

OPTION EVALUATION:
For every option independently, list its strengths and limitations and state whether it is a partial or complete solution.

COMPARATIVE ANALYSIS:
Compare the options against each other, highlighting trade-offs in effectiveness, scope, and timeliness.

FINAL SELECTION:
Choose exactly one option label as MOST effective, justifying the choice from your stage 2 and 3 findings rather than restating the option text. If the documents do not distinguish the options, say so explicitly and still choose the best-supported label.

End your response with a single line in exactly this format:
FINAL ANSWER: <label>`,
		contextText, q.Scenario, q.Question, options.String())
}

// parseFinalAnswer extracts the selected label and validates it against the
// option mapping. The last match wins, since the reasoning text may mention
// the answer-line format before the actual selection.
func parseFinalAnswer(completion string, options map[string]string) (string, bool) {
	matches := finalAnswerPattern.FindAllStringSubmatch(completion, -1)
	if len(matches) == 0 {
		return "", false
	}
	label := strings.ToUpper(matches[len(matches)-1][1])
	if _, ok := options[label]; !ok {
		return "", false
	}
	return label, true
}

// confidenceFrom reports high confidence only when all four stage sections
// are present in the completion.
func confidenceFrom(completion string) string {
	for _, marker := range stageMarkers {
		if !strings.Contains(completion, marker) {
			return ConfidenceLow
		}
	}
	return ConfidenceHigh
}
