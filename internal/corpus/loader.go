package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/examind/internal/logging"
)

// LoadDirectory normalizes every recognized document under dir, in filename
// order so repeated runs produce identical chunk sequences.
//
// Files whose names match no known pattern are skipped with a warning, as are
// documents the normalizer reports as skipped. A nil logger disables logging.
func LoadDirectory(ctx context.Context, dir string, n *Normalizer, log *logging.Logger) ([]Chunk, error) {
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Named("loader")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].Name() < entries[b].Name()
	})

	var chunks []Chunk
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		ctx := logging.ContextWithDocument(ctx, name)

		meta, err := ParseFileName(name)
		if err != nil {
			log.Warn(ctx, "skipping unrecognized filename", zap.Error(err))
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		doc, err := n.Normalize(ctx, meta, string(raw))
		if err != nil {
			return nil, fmt.Errorf("normalizing %s: %w", name, err)
		}
		if doc.Skipped {
			log.Info(ctx, "document skipped", zap.String("reason", doc.SkipReason))
			continue
		}

		log.Debug(ctx, "document normalized", zap.Int("chunks", len(doc.Chunks)))
		chunks = append(chunks, doc.Chunks...)
	}

	return chunks, nil
}
