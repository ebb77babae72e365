package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "default config",
			cfg:  NewDefaultConfig(),
		},
		{
			name: "console format",
			cfg:  &Config{Level: "debug", Format: "console"},
		},
		{
			name:    "invalid format",
			cfg:     &Config{Level: "info", Format: "xml"},
			wantErr: true,
		},
		{
			name:    "invalid level",
			cfg:     &Config{Level: "loud", Format: "json"},
			wantErr: true,
		},
		{
			name:    "empty field value",
			cfg:     &Config{Level: "info", Format: "json", Fields: map[string]string{"service": ""}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = ContextWithCollection(ctx, "study_corpus_v1")
	ctx = ContextWithDocument(ctx, "1.2.3_Phishing_[video].txt")
	ctx = ContextWithQuestionID(ctx, "Q1")

	fields := ContextFields(ctx)
	require.Len(t, fields, 3)
	assert.Equal(t, "study_corpus_v1", CollectionFromContext(ctx))
	assert.Equal(t, "1.2.3_Phishing_[video].txt", DocumentFromContext(ctx))
	assert.Equal(t, "Q1", QuestionIDFromContext(ctx))
}

func TestTestLoggerObservation(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "index build complete")
	tl.Warn(context.Background(), "chunk dropped")

	tl.AssertLogged(t, zapcore.InfoLevel, "index build complete")
	assert.Equal(t, 1, tl.FilterMessage("chunk dropped").Len())
}
