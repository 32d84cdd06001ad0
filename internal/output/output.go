// Package output writes build outputs and their precompressed .br siblings.
package output

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/benzoXdev/bundleobf/internal/driver"
)

const maxParallel = 4

// Stats summarizes a write.
type Stats struct {
	Files           int
	Compressed      int
	OriginalBytes   int64
	CompressedBytes int64
}

// Writer writes files to fs, optionally adding brotli-compressed copies.
type Writer struct {
	fs     afero.Fs
	brotli bool
	level  int
	logger zerolog.Logger
}

// New returns a Writer. With compress set, every .js, .css, .html, .json and
// .map file also gets a <name>.br sibling.
func New(fs afero.Fs, compress bool, logger zerolog.Logger) *Writer {
	return &Writer{fs: fs, brotli: compress, level: brotli.BestCompression, logger: logger}
}

// WriteAll writes every output file.
func (w *Writer) WriteAll(ctx context.Context, files []api.OutputFile) (Stats, error) {
	var (
		mu    sync.Mutex
		stats Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := driver.WriteFile(w.fs, f.Path, f.Contents); err != nil {
				return err
			}
			orig, comp, err := w.compress(f.Path, f.Contents)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			stats.Files++
			if comp > 0 {
				stats.Compressed++
				stats.OriginalBytes += orig
				stats.CompressedBytes += comp
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	w.log(stats)
	return stats, nil
}

// CompressFile adds a .br sibling for an existing file on fs.
func (w *Writer) CompressFile(path string) (Stats, error) {
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return Stats{}, fmt.Errorf("reading %s: %w", path, err)
	}
	orig, comp, err := w.compress(path, data)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Files: 1}
	if comp > 0 {
		stats = Stats{Files: 1, Compressed: 1, OriginalBytes: orig, CompressedBytes: comp}
	}
	w.log(stats)
	return stats, nil
}

func (w *Writer) compress(path string, data []byte) (int64, int64, error) {
	if !w.brotli || !compressible(path) {
		return 0, 0, nil
	}
	var buf bytes.Buffer
	bw := brotli.NewWriterLevel(&buf, w.level)
	if _, err := bw.Write(data); err != nil {
		return 0, 0, fmt.Errorf("compressing %s: %w", path, err)
	}
	if err := bw.Close(); err != nil {
		return 0, 0, fmt.Errorf("compressing %s: %w", path, err)
	}
	if err := afero.WriteFile(w.fs, path+".br", buf.Bytes(), 0o644); err != nil {
		return 0, 0, fmt.Errorf("writing %s.br: %w", path, err)
	}
	return int64(len(data)), int64(buf.Len()), nil
}

func (w *Writer) log(s Stats) {
	ev := w.logger.Info().Int("files", s.Files)
	if s.Compressed > 0 {
		ev = ev.Int("brotli", s.Compressed).Int64("original", s.OriginalBytes).Int64("compressed", s.CompressedBytes)
	}
	ev.Msg("Outputs written")
}

func compressible(path string) bool {
	if strings.HasSuffix(path, ".br") {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs", ".css", ".html", ".json", ".map":
		return true
	}
	return false
}
