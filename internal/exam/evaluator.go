package exam

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/examind/internal/index"
	"github.com/fyrsmithlabs/examind/internal/logging"
	"github.com/fyrsmithlabs/examind/internal/retrieval"
)

// Retriever is the slice of the retrieval engine the evaluator needs.
type Retriever interface {
	RetrieveForScenario(ctx context.Context, scenario, question string, options map[string]string, filters map[string]string) ([]retrieval.Evidence, error)
}

// Evaluator runs questions end to end: multi-query retrieval, context
// assembly, answer selection, scoring.
type Evaluator struct {
	retriever Retriever
	selector  *Selector
	log       *logging.Logger
}

// NewEvaluator creates an Evaluator. A nil logger disables logging.
func NewEvaluator(retriever Retriever, selector *Selector, log *logging.Logger) *Evaluator {
	if log == nil {
		log = logging.NewNop()
	}
	return &Evaluator{
		retriever: retriever,
		selector:  selector,
		log:       log.Named("evaluator"),
	}
}

// EvaluateQuestion answers one question. A question carrying a chapter
// restricts retrieval to that chapter. ErrNoAnswer is returned with a
// populated Result so the reasoning text survives for diagnostics.
func (e *Evaluator) EvaluateQuestion(ctx context.Context, q Question) (Result, error) {
	ctx = logging.ContextWithQuestionID(ctx, q.ID)

	var filters map[string]string
	if q.Chapter != "" {
		filters = map[string]string{index.FieldChapterNum: q.Chapter}
	}

	evidence, err := e.retriever.RetrieveForScenario(ctx, q.Scenario, q.Question, q.Options, filters)
	if err != nil {
		return Result{}, fmt.Errorf("retrieving evidence: %w", err)
	}

	contextText := retrieval.AssembleContext(evidence)

	result, err := e.selector.SelectAnswer(ctx, q, contextText)
	result.NumSources = len(evidence)
	if err != nil {
		return result, err
	}

	e.log.Info(ctx, "question evaluated",
		zap.Bool("correct", result.Correct),
		zap.Int("sources", result.NumSources))
	return result, nil
}

// EvaluateQuestions answers a batch of questions and aggregates accuracy.
// Per-question failures do not abort the run: questions the selector declines
// to answer count as unanswered, while retrieval or selection errors count as
// failed, and partial success is reported alongside the results.
func (e *Evaluator) EvaluateQuestions(ctx context.Context, questions []Question) (Summary, error) {
	summary := Summary{Total: len(questions)}

	for _, q := range questions {
		result, err := e.EvaluateQuestion(ctx, q)
		switch {
		case errors.Is(err, ErrNoAnswer):
			summary.Unanswered++
		case err != nil:
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			e.log.Error(ctx, "question evaluation failed",
				zap.String("question_id", q.ID),
				zap.Error(err))
			summary.Failed++
			continue
		case result.Correct:
			summary.Correct++
		default:
			summary.Incorrect++
		}
		summary.Results = append(summary.Results, result)
	}

	if summary.Total > 0 {
		summary.Accuracy = float64(summary.Correct) / float64(summary.Total)
	}
	return summary, nil
}
