// Package binary serves word vectors from a word2vec binary file held in memory.
package binary

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/domain"
	"github.com/kailas-cloud/modeld/internal/embedding"
)

// DefaultMaxWordLength matches the word2vec tools' dictionary slot size.
const DefaultMaxWordLength = 50

const (
	readBufferSize = 1 << 20
	maxPrealloc    = 1 << 16
	checkEvery     = 1 << 14
)

// Config holds the table settings.
type Config struct {
	Path          string
	MaxWordLength int
	LogNearest    bool
	Logger        *zap.Logger
}

// Table is a word vector table with an explicit load/free lifecycle.
// Center holds the read lock for its whole duration; Load and Free take the write lock.
type Table struct {
	path       string
	maxWordLen int
	logNearest bool
	logger     *zap.Logger

	mu      sync.RWMutex
	words   []string
	index   map[string]int
	vectors []float32
	dim     int
}

// New creates an unloaded table.
func New(cfg Config) *Table {
	maxLen := cfg.MaxWordLength
	if maxLen <= 0 {
		maxLen = DefaultMaxWordLength
	}
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Table{
		path:       cfg.Path,
		maxWordLen: maxLen,
		logNearest: cfg.LogNearest,
		logger:     l,
	}
}

// Load reads the vector file. Loading an already loaded table is a no-op.
func (t *Table) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.index != nil {
		t.logger.Debug("Word vectors already loaded", zap.String("path", t.path))
		return nil
	}

	start := time.Now()
	f, err := os.Open(filepath.Clean(t.path))
	if err != nil {
		return fmt.Errorf("open vector file: %w: %w", domain.ErrEmbedderFailed, err)
	}
	defer func() { _ = f.Close() }()

	words, index, vectors, dim, err := t.read(ctx, bufio.NewReaderSize(f, readBufferSize))
	if err != nil {
		return fmt.Errorf("read vector file %s: %w: %w", t.path, domain.ErrEmbedderFailed, err)
	}

	t.words, t.index, t.vectors, t.dim = words, index, vectors, dim
	t.logger.Info("Loaded word vectors",
		zap.String("path", t.path),
		zap.Int("words", len(words)),
		zap.Int("dimensions", dim),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Free releases the table. Freeing an unloaded table is a no-op.
func (t *Table) Free(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.words, t.index, t.vectors, t.dim = nil, nil, nil, 0
	return nil
}

// Loaded reports whether the table is in memory.
func (t *Table) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index != nil
}

// Dimensions returns the vector size, or 0 while unloaded.
func (t *Table) Dimensions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dim
}

// Size returns the vocabulary size, or 0 while unloaded.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.words)
}

// Center averages the vectors of the known words. Unknown words are skipped;
// if none is known the query is empty.
func (t *Table) Center(_ context.Context, words []string) ([]float32, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.index == nil {
		return nil, domain.ErrModelNotLoaded
	}

	rows := make([]int, 0, len(words))
	vecs := make([][]float32, 0, len(words))
	for _, w := range words {
		if len(w) > t.maxWordLen {
			w = w[:t.maxWordLen]
		}
		if i, ok := t.index[w]; ok {
			rows = append(rows, i)
			vecs = append(vecs, t.row(i))
		}
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("none of %d words in vocabulary: %w", len(words), domain.ErrEmptyQuery)
	}

	center, err := embedding.Mean(vecs)
	if err != nil {
		return nil, fmt.Errorf("average vectors: %w: %w", domain.ErrEmbedderFailed, err)
	}

	if t.logNearest {
		if i, dist := t.nearest(center, rows); i >= 0 {
			t.logger.Info("Closest word to computed center",
				zap.String("word", t.words[i]),
				zap.Float32("squared_distance", dist),
			)
		}
	}
	return center, nil
}

func (t *Table) row(i int) []float32 {
	return t.vectors[i*t.dim : (i+1)*t.dim]
}

// nearest returns the vocabulary row closest to v, excluding the given rows.
func (t *Table) nearest(v []float32, exclude []int) (int, float32) {
	skip := make(map[int]struct{}, len(exclude))
	for _, i := range exclude {
		skip[i] = struct{}{}
	}
	best, bestDist := -1, float32(math.MaxFloat32)
	for i := range t.words {
		if _, ok := skip[i]; ok {
			continue
		}
		if d := embedding.SquaredDistance(v, t.row(i)); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// read parses "<count> <dim>\n" followed by count entries of a space-terminated
// word and dim little-endian float32 values. On duplicate words the first wins.
func (t *Table) read(ctx context.Context, r *bufio.Reader) ([]string, map[string]int, []float32, int, error) {
	var count, dim int
	if _, err := fmt.Fscan(r, &count, &dim); err != nil {
		return nil, nil, nil, 0, fmt.Errorf("read header: %w", err)
	}
	if count <= 0 || dim <= 0 {
		return nil, nil, nil, 0, fmt.Errorf("invalid header: %d words, %d dimensions", count, dim)
	}

	words := make([]string, 0, min(count, maxPrealloc))
	index := make(map[string]int, min(count, maxPrealloc))
	vectors := make([]float32, 0, min(count, maxPrealloc)*dim)
	raw := make([]byte, 4*dim)

	for n := range count {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, nil, 0, fmt.Errorf("interrupted after %d words: %w", n, err)
			}
		}
		w, err := readWord(r, t.maxWordLen)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("word %d: %w", n, err)
		}
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, nil, nil, 0, fmt.Errorf("vector %d (%q): %w", n, w, err)
		}
		for k := range dim {
			vectors = append(vectors, math.Float32frombits(binary.LittleEndian.Uint32(raw[4*k:])))
		}
		if _, dup := index[w]; !dup {
			index[w] = n
		}
		words = append(words, w)
	}
	return words, index, vectors, dim, nil
}

// readWord reads bytes up to a space, dropping newlines and keeping at most maxLen bytes.
func readWord(r *bufio.Reader, maxLen int) (string, error) {
	buf := make([]byte, 0, 16)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", err //nolint:wrapcheck // caller wraps with position
		}
		switch {
		case b == ' ':
			return string(buf), nil
		case b == '\n':
		case len(buf) < maxLen:
			buf = append(buf, b)
		}
	}
}
