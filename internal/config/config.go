// Package config provides configuration loading for examind.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Each section maps onto the owning package's config struct.
package config

import (
	"fmt"
	"os"

	"github.com/fyrsmithlabs/examind/internal/embeddings"
	"github.com/fyrsmithlabs/examind/internal/index"
	"github.com/fyrsmithlabs/examind/internal/llm"
	"github.com/fyrsmithlabs/examind/internal/logging"
	"github.com/fyrsmithlabs/examind/internal/retrieval"
	"github.com/fyrsmithlabs/examind/internal/vectorstore"
)

// Config holds the complete examind configuration.
type Config struct {
	Corpus     CorpusConfig             `koanf:"corpus"`
	Qdrant     vectorstore.QdrantConfig `koanf:"qdrant"`
	Embeddings embeddings.Config        `koanf:"embeddings"`
	LLM        llm.Config               `koanf:"llm"`
	Index      index.Config             `koanf:"index"`
	Retrieval  retrieval.Config         `koanf:"retrieval"`
	Summarize  SummarizeConfig          `koanf:"summarize"`
	Logging    logging.Config           `koanf:"logging"`
}

// CorpusConfig locates the source documents.
type CorpusConfig struct {
	// Dir is the directory scanned for course documents.
	Dir string `koanf:"dir"`
}

// SummarizeConfig controls summary generation during index builds.
type SummarizeConfig struct {
	// UseLLM selects model-generated summaries. When false the extractive
	// summarizer runs instead, which needs no provider.
	UseLLM bool `koanf:"use_llm"`

	// CorpusContext is a one-paragraph description of the knowledge base
	// included in every summarization prompt.
	CorpusContext string `koanf:"corpus_context"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	cfg.Qdrant.ApplyDefaults()
	cfg.Embeddings.ApplyDefaults()
	cfg.LLM.ApplyDefaults()
	cfg.Index.ApplyDefaults()
	cfg.Retrieval.ApplyDefaults()

	if cfg.Logging.Level == "" || cfg.Logging.Format == "" {
		def := logging.NewDefaultConfig()
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = def.Level
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = def.Format
		}
		if cfg.Logging.Fields == nil {
			cfg.Logging.Fields = def.Fields
		}
	}

	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "documents"
	}

	// Provider-conventional API key variables win over nothing, never over
	// explicit configuration.
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case llm.ProviderAnthropic:
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case llm.ProviderOpenAI:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.Embeddings.APIKey == "" {
		cfg.Embeddings.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate validates the sections every command needs. The LLM section is
// validated separately because index builds with extractive summaries never
// touch a completion model.
func (c *Config) Validate() error {
	if err := c.Qdrant.Validate(); err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	if err := c.Embeddings.Validate(); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Retrieval.KMain < 1 || c.Retrieval.KOption < 1 || c.Retrieval.MaxEvidence < 1 {
		return fmt.Errorf("retrieval: result counts must be positive")
	}
	return nil
}

// ValidateLLM validates the completion-model section. Commands that answer
// questions or generate summaries call this before building a client.
func (c *Config) ValidateLLM() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	return nil
}
