package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/examind/internal/exam"
	"github.com/fyrsmithlabs/examind/internal/llm"
	"github.com/fyrsmithlabs/examind/internal/retrieval"
)

var (
	examChapter string
	examJSON    bool
	examVerbose bool
)

func init() {
	examCmd.Flags().StringVar(&examChapter, "chapter", "", "restrict retrieval to one chapter for all questions")
	examCmd.Flags().BoolVar(&examJSON, "json", false, "output results as JSON")
	examCmd.Flags().BoolVar(&examVerbose, "verbose", false, "print the model's reasoning for each question")
}

var examCmd = &cobra.Command{
	Use:   "exam <file>",
	Short: "Evaluate exam questions against the index",
	Long: `Answer every question in an exam file and report per-question outcomes
plus overall accuracy.

Two file formats are accepted. A .json file holds an array of structured
questions. Any other file is treated as plain text with questions separated
by lines containing only "---".

Examples:
  examind exam chapter1_exam.txt
  examind exam --chapter 3 --json questions.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExam,
}

func runExam(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()
	ctx := cmd.Context()

	questions, err := questionsFromFile(args[0])
	if err != nil {
		return err
	}
	if examChapter != "" {
		for i := range questions {
			questions[i].Chapter = examChapter
		}
	}

	if err := cfg.ValidateLLM(); err != nil {
		return err
	}
	client, err := llm.New(cfg.LLM)
	if err != nil {
		return err
	}

	store, embedder, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := retrieval.NewEngine(store, embedder, log, cfg.Retrieval)
	evaluator := exam.NewEvaluator(engine, exam.NewSelector(client, log), log)

	summary, err := evaluator.EvaluateQuestions(ctx, questions)
	if err != nil {
		return err
	}

	if examJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	printSummary(summary)
	return nil
}

// questionsFromFile loads questions from a JSON array or a "---" delimited
// text file.
func questionsFromFile(path string) ([]exam.Question, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exam file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var questions []exam.Question
		if err := json.Unmarshal(content, &questions); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for i := range questions {
			if questions[i].ID == "" {
				questions[i].ID = fmt.Sprintf("Q%d", i+1)
			}
		}
		return questions, nil
	}

	var questions []exam.Question
	for i, block := range splitQuestionBlocks(string(content)) {
		q, err := exam.ParseQuestion(block, fmt.Sprintf("Q%d", i+1))
		if err != nil {
			return nil, fmt.Errorf("question %d in %s: %w", i+1, path, err)
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions found in %s", path)
	}
	return questions, nil
}

// splitQuestionBlocks splits text on lines containing only dashes.
func splitQuestionBlocks(text string) []string {
	var blocks []string
	var current []string

	flush := func() {
		if block := strings.TrimSpace(strings.Join(current, "\n")); block != "" {
			blocks = append(blocks, block)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= 3 && strings.Count(trimmed, "-") == len(trimmed) {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

func printSummary(summary exam.Summary) {
	for _, r := range summary.Results {
		status := "WRONG"
		switch {
		case r.PredictedAnswer == "":
			status = "NO ANSWER"
		case r.Correct:
			status = "OK"
		}
		fmt.Printf("%-6s %-10s predicted=%s actual=%s confidence=%s sources=%d\n",
			r.QuestionID, status, orDash(r.PredictedAnswer), orDash(r.ActualAnswer),
			r.Confidence, r.NumSources)
		if examVerbose && r.Reasoning != "" {
			fmt.Println(indent(r.Reasoning, "    "))
		}
	}

	fmt.Printf("\nTotal: %d  Correct: %d  Incorrect: %d  Unanswered: %d  Failed: %d  Accuracy: %.1f%%\n",
		summary.Total, summary.Correct, summary.Incorrect, summary.Unanswered,
		summary.Failed, summary.Accuracy*100)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
