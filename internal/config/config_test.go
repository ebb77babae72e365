package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, 7, cfg.Retrieval.KMain)
	assert.Equal(t, 3, cfg.Retrieval.KOption)
	assert.Equal(t, 12, cfg.Retrieval.MaxEvidence)
	assert.Equal(t, "study_chunks", cfg.Retrieval.Collection)
	assert.Equal(t, "documents", cfg.Corpus.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadBytesYAMLValues(t *testing.T) {
	yaml := `
qdrant:
  host: qdrant.example.com
  port: 7000
retrieval:
  k_main: 5
  max_evidence: 8
summarize:
  use_llm: true
  corpus_context: corporate security training corpus
logging:
  level: debug
  format: console
`
	cfg, err := LoadBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "qdrant.example.com", cfg.Qdrant.Host)
	assert.Equal(t, 7000, cfg.Qdrant.Port)
	assert.Equal(t, 5, cfg.Retrieval.KMain)
	assert.Equal(t, 8, cfg.Retrieval.MaxEvidence)
	assert.Equal(t, 3, cfg.Retrieval.KOption, "unset fields keep defaults")
	assert.True(t, cfg.Summarize.UseLLM)
	assert.Equal(t, "corporate security training corpus", cfg.Summarize.CorpusContext)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadBytesEnvOverridesFile(t *testing.T) {
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("RETRIEVAL_K_MAIN", "9")

	cfg, err := LoadBytes([]byte("qdrant:\n  host: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 9, cfg.Retrieval.KMain)
}

func TestLoadBytesInvalidLogging(t *testing.T) {
	_, err := LoadBytes([]byte("logging:\n  format: xml\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging")
}

func TestLoadBytesInvalidYAML(t *testing.T) {
	_, err := LoadBytes([]byte(":::not yaml"))
	require.Error(t, err)
}

func TestAPIKeyEnvFallback(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := LoadBytes([]byte("llm:\n  provider: anthropic\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.LLM.APIKey)
	require.NoError(t, cfg.ValidateLLM())
}

func TestValidateLLMRequiresKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := LoadBytes([]byte("{}"))
	require.NoError(t, err, "base validation does not require an LLM key")
	require.Error(t, cfg.ValidateLLM())
}

func TestLoadWithFileRejectsOutsideAllowedDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path validation")
}

func TestValidateConfigFileProperties(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		perm    os.FileMode
		wantErr bool
	}{
		{"owner read write", 0600, false},
		{"owner read only", 0400, false},
		{"world readable", 0644, true},
		{"group readable", 0640, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte("{}"), tt.perm))
			require.NoError(t, os.Chmod(path, tt.perm))

			info, err := os.Stat(path)
			require.NoError(t, err)

			err = validateConfigFileProperties(info)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
