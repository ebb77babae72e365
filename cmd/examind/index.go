package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/examind/internal/config"
	"github.com/fyrsmithlabs/examind/internal/corpus"
	"github.com/fyrsmithlabs/examind/internal/index"
	"github.com/fyrsmithlabs/examind/internal/llm"
	"github.com/fyrsmithlabs/examind/internal/logging"
	"github.com/fyrsmithlabs/examind/internal/summarize"
)

var (
	indexDir        string
	indexCollection string
	indexResume     bool
)

func init() {
	for _, cmd := range []*cobra.Command{indexCmd, rebuildCmd} {
		cmd.Flags().StringVar(&indexDir, "dir", "", "corpus directory (overrides config)")
		cmd.Flags().StringVar(&indexCollection, "collection", "", "collection name (overrides config)")
	}
	indexCmd.Flags().BoolVar(&indexResume, "resume", false, "skip chunks already present in the collection")

	infoCmd.Flags().StringVar(&indexCollection, "collection", "", "collection name (overrides config)")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the vector index from the corpus directory",
	Long: `Normalize every course document in the corpus directory, attach summaries,
and index the chunks into the configured collection.

With --resume, chunks already present in the collection are skipped, so an
interrupted build can be continued without re-embedding.

Examples:
  examind index
  examind index --dir ./documents --resume`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index into a fresh collection and swap the alias",
	Long: `Build a fresh versioned collection from the corpus directory and atomically
repoint the read alias at it. Readers keep querying the old collection until
the swap, and superseded versions are dropped afterwards.

Examples:
  examind rebuild
  examind rebuild --dir ./documents`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show collection status",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()
	ctx := cmd.Context()

	chunks, err := loadChunks(ctx, cfg, log)
	if err != nil {
		return err
	}

	store, embedder, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	builder := index.NewBuilder(store, embedder, log, cfg.Index)
	report, err := builder.Build(ctx, collectionName(cfg), chunks, indexResume)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()
	ctx := cmd.Context()

	chunks, err := loadChunks(ctx, cfg, log)
	if err != nil {
		return err
	}

	store, embedder, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	builder := index.NewBuilder(store, embedder, log, cfg.Index)
	report, err := builder.Rebuild(ctx, collectionName(cfg), chunks)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func runInfo(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, _, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	info, err := store.GetCollectionInfo(cmd.Context(), collectionName(cfg))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Collection:\t%s\n", info.Name)
	fmt.Fprintf(w, "Points:\t%d\n", info.PointCount)
	fmt.Fprintf(w, "Vector size:\t%d\n", info.VectorSize)
	return w.Flush()
}

// loadChunks normalizes the corpus directory and attaches summaries.
func loadChunks(ctx context.Context, cfg *config.Config, log *logging.Logger) ([]corpus.Chunk, error) {
	dir := cfg.Corpus.Dir
	if indexDir != "" {
		dir = indexDir
	}

	chunks, err := corpus.LoadDirectory(ctx, dir, corpus.NewNormalizer(log), log)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no indexable documents found in %s", dir)
	}

	var primary summarize.Summarizer
	if cfg.Summarize.UseLLM {
		if err := cfg.ValidateLLM(); err != nil {
			return nil, err
		}
		client, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, err
		}
		primary = summarize.NewLLMSummarizer(client, cfg.Summarize.CorpusContext)
	}

	attacher := summarize.NewAttacher(primary, log)
	chunks, err = attacher.Attach(ctx, chunks)
	if err != nil {
		return nil, err
	}

	stats := attacher.Stats()
	fmt.Printf("Loaded %d chunks (%d summarized, %d extractive fallbacks)\n",
		len(chunks), stats.Summarized, stats.FellBack)
	return chunks, nil
}

func collectionName(cfg *config.Config) string {
	if indexCollection != "" {
		return indexCollection
	}
	return cfg.Retrieval.Collection
}

func printReport(report *index.BuildReport) {
	fmt.Printf("Collection: %s\n", report.Collection)
	fmt.Printf("Indexed:    %d\n", report.Indexed)
	fmt.Printf("Skipped:    %d\n", report.Skipped)
	if report.Failed > 0 {
		fmt.Printf("Failed:     %d\n", report.Failed)
		for _, id := range report.FailedIDs {
			fmt.Printf("  %s\n", id)
		}
	}
}
