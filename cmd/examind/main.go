// Package main implements the examind CLI for indexing course content into
// Qdrant and answering scenario-based exam questions against it.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/examind/internal/config"
	"github.com/fyrsmithlabs/examind/internal/embeddings"
	"github.com/fyrsmithlabs/examind/internal/logging"
	"github.com/fyrsmithlabs/examind/internal/vectorstore"
)

var (
	cfgFile string
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "examind",
	Short: "Retrieval-backed study assistant for scenario-based exams",
	Long: `examind indexes chapter-organized course content into a vector store and
answers scenario-based multiple-choice questions against it.

Commands cover the full lifecycle: building and rebuilding the index,
inspecting it, running ad-hoc retrieval queries, and evaluating exam files.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/examind/config.yaml)")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(examCmd)
}

func main() {
	// .env is optional and never overrides variables already set in the
	// environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads configuration and builds the logger from it.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadWithFile(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	log, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

// openBackends connects the vector store and embedding provider. The caller
// owns closing the store.
func openBackends(cfg *config.Config) (*vectorstore.QdrantStore, *embeddings.Service, error) {
	store, err := vectorstore.NewQdrantStore(cfg.Qdrant)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	embedder, err := embeddings.NewService(cfg.Embeddings)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("creating embedding service: %w", err)
	}
	return store, embedder, nil
}
