package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/examind/internal/config"
	"github.com/fyrsmithlabs/examind/internal/exam"
	"github.com/fyrsmithlabs/examind/internal/index"
	"github.com/fyrsmithlabs/examind/internal/llm"
	"github.com/fyrsmithlabs/examind/internal/logging"
	"github.com/fyrsmithlabs/examind/internal/reranker"
	"github.com/fyrsmithlabs/examind/internal/retrieval"
)

var (
	queryChapter  string
	queryK        int
	queryInitialK int
	queryRerank   string
)

func init() {
	for _, cmd := range []*cobra.Command{queryCmd, askCmd} {
		cmd.Flags().StringVar(&queryChapter, "chapter", "", "restrict results to one chapter")
		cmd.Flags().IntVar(&queryK, "k", 0, "number of results (default from config)")
		cmd.Flags().IntVar(&queryInitialK, "initial-k", 0, "candidate pool size for reranking (default 3*k)")
		cmd.Flags().StringVar(&queryRerank, "rerank", "none", "reranking strategy: none, overlap or llm")
	}
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run an ad-hoc retrieval query against the index",
	Long: `Embed the query text, search the configured collection and print the
matching chunks with their scores.

Examples:
  examind query "how does spear phishing differ from whaling"
  examind query --chapter 3 --k 5 "incident response roles"
  examind query --rerank llm "defense in depth"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a free-text question from the indexed corpus",
	Long: `Retrieve evidence for the question and generate an answer grounded in it.

Examples:
  examind ask "what is the difference between a CIRT and a SOC"
  examind ask --chapter 2 --rerank overlap "how should phishing be reported"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, embedder, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := retrieval.NewEngine(store, embedder, log, cfg.Retrieval)
	evidence, err := retrieveWithOptions(cmd, cfg, log, engine, args[0])
	if err != nil {
		return err
	}

	if len(evidence) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, ev := range evidence {
		header := ev.SectionHeader
		if ev.TimestampRange != "" {
			header = fmt.Sprintf("%s (%s)", header, ev.TimestampRange)
		}
		fmt.Printf("%d. [%.4f] %s\n", i+1, ev.Score, header)
		fmt.Printf("   chunk=%s chapter=%s section=%s\n", ev.ChunkID, ev.ChapterNum, ev.SectionNum)
		if ev.Summary != "" {
			fmt.Printf("   %s\n", strings.TrimSpace(ev.Summary))
		}
		fmt.Println()
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()
	ctx := cmd.Context()

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
	evidence, err := retrieveWithOptions(cmd, cfg, log, engine, args[0])
	if err != nil {
		return err
	}
	if len(evidence) == 0 {
		fmt.Println("No relevant content found in the index.")
		return nil
	}

	selector := exam.NewSelector(client, log)
	answer, err := selector.AnswerQuery(ctx, args[0], retrieval.AssembleContext(evidence))
	if err != nil {
		return err
	}

	fmt.Println(answer)
	fmt.Printf("\n(%d sources)\n", len(evidence))
	return nil
}

// retrieveWithOptions applies the shared --chapter/--k/--rerank flags.
func retrieveWithOptions(cmd *cobra.Command, cfg *config.Config, log *logging.Logger, engine *retrieval.Engine, query string) ([]retrieval.Evidence, error) {
	ctx := cmd.Context()

	k := queryK
	if k == 0 {
		k = cfg.Retrieval.KMain
	}
	initialK := queryInitialK
	if initialK == 0 {
		initialK = 3 * k
	}

	var filters map[string]string
	if queryChapter != "" {
		filters = map[string]string{index.FieldChapterNum: queryChapter}
	}

	var r retrieval.Reranker
	switch queryRerank {
	case "none":
		return engine.Retrieve(ctx, query, k, filters)
	case "overlap":
		r = reranker.NewOverlapReranker()
	case "llm":
		if err := cfg.ValidateLLM(); err != nil {
			return nil, err
		}
		client, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, err
		}
		r = reranker.NewLLMReranker(client, log)
	default:
		return nil, fmt.Errorf("unknown rerank strategy %q (want none, overlap or llm)", queryRerank)
	}

	return engine.RetrieveWithReranking(ctx, query, k, initialK, filters, r)
}
