// Package library analyzes every audio file under a directory.
package library

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nzoschke/trackmeta/pkg/analysis"
	"github.com/nzoschke/trackmeta/pkg/audio"
	"github.com/nzoschke/trackmeta/pkg/catalog"
)

// Store persists results. *catalog.Catalog implements it.
type Store interface {
	FindByPath(ctx context.Context, path string) (*catalog.Track, error)
	Save(ctx context.Context, path string, r *analysis.Result) (*catalog.Track, error)
}

// LoadFunc decodes a file into a waveform at targetRate.
type LoadFunc func(path string, targetRate int) (*analysis.Waveform, error)

// Entry is one successfully analyzed file.
type Entry struct {
	Path   string           `json:"path" yaml:"path"`
	Result *analysis.Result `json:"result" yaml:"result"`
}

// Failure is one file that could not be analyzed or stored.
type Failure struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
	Err   error  `json:"-" yaml:"-"`
}

// Report is the outcome of a scan. Each list is ordered by path.
type Report struct {
	Results []Entry   `json:"results" yaml:"results"`
	Skipped []string  `json:"skipped" yaml:"skipped"`
	Failed  []Failure `json:"failed" yaml:"failed"`
}

// Scanner analyzes files concurrently.
type Scanner struct {
	analyzer   *analysis.Analyzer
	store      Store
	load       LoadFunc
	log        *zap.Logger
	workers    int
	timeout    time.Duration
	sampleRate int
	force      bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithStore saves results to s and skips files it already holds.
func WithStore(s Store) Option {
	return func(sc *Scanner) { sc.store = s }
}

// WithLoader replaces the audio decoder.
func WithLoader(load LoadFunc) Option {
	return func(sc *Scanner) { sc.load = load }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(sc *Scanner) {
		if log != nil {
			sc.log = log
		}
	}
}

// WithWorkers sets how many files are analyzed at once.
func WithWorkers(n int) Option {
	return func(sc *Scanner) {
		if n > 0 {
			sc.workers = n
		}
	}
}

// WithTimeout bounds the time spent on a single file. Zero disables it.
// Analysis cannot be interrupted, so a file that times out is reported as
// failed but keeps its worker slot until the analysis returns.
func WithTimeout(d time.Duration) Option {
	return func(sc *Scanner) { sc.timeout = d }
}

// WithSampleRate sets the rate files are resampled to before analysis.
func WithSampleRate(rate int) Option {
	return func(sc *Scanner) { sc.sampleRate = rate }
}

// WithForce reanalyzes files the store already holds.
func WithForce(force bool) Option {
	return func(sc *Scanner) { sc.force = force }
}

// NewScanner creates a Scanner that runs a over each file.
func NewScanner(a *analysis.Analyzer, opts ...Option) *Scanner {
	sc := &Scanner{
		analyzer:   a,
		load:       audio.Load,
		log:        zap.NewNop(),
		workers:    runtime.NumCPU(),
		sampleRate: 44100,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Discover returns the supported audio files under root in lexical order.
// A root that is itself a file is returned alone.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !audio.IsSupported(root) {
			return nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, root)
		}
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && audio.IsSupported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return paths, nil
}

// Title derives a track title from its file name.
func Title(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Scan analyzes every supported file under root. Per-file failures are
// collected in the report. Cancelling ctx aborts the scan.
func (s *Scanner) Scan(ctx context.Context, root string) (*Report, error) {
	paths, err := Discover(root)
	if err != nil {
		return nil, err
	}

	s.log.Info("scanning", zap.String("root", root), zap.Int("files", len(paths)), zap.Int("workers", s.workers))
	start := time.Now()

	var (
		mu     sync.Mutex
		report = &Report{Results: []Entry{}, Skipped: []string{}, Failed: []Failure{}}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, path := range paths {
		path := path
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			log := s.log.With(zap.String("path", path))

			if s.store != nil && !s.force {
				_, err := s.store.FindByPath(gctx, path)
				switch {
				case err == nil:
					log.Debug("already cataloged")
					mu.Lock()
					report.Skipped = append(report.Skipped, path)
					mu.Unlock()
					return nil
				case !errors.Is(err, catalog.ErrNotFound):
					s.fail(&mu, report, log, path, err)
					return nil
				}
			}

			result, err := s.analyzeFile(gctx, path)
			if err == nil && s.store != nil {
				_, err = s.store.Save(gctx, path, result)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.fail(&mu, report, log, path, err)
				return nil
			}

			mu.Lock()
			report.Results = append(report.Results, Entry{Path: path, Result: result})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(report.Results, func(a, b Entry) int { return cmp.Compare(a.Path, b.Path) })
	slices.Sort(report.Skipped)
	slices.SortFunc(report.Failed, func(a, b Failure) int { return cmp.Compare(a.Path, b.Path) })

	s.log.Info("scanned",
		zap.Int("analyzed", len(report.Results)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}

func (s *Scanner) fail(mu *sync.Mutex, report *Report, log *zap.Logger, path string, err error) {
	log.Warn("analysis failed", zap.Error(err))
	mu.Lock()
	report.Failed = append(report.Failed, Failure{Path: path, Error: err.Error(), Err: err})
	mu.Unlock()
}

// analyzeFile decodes and analyzes one file. A result that arrives after the
// timeout is discarded, but analyzeFile still waits for it unless the parent
// context is cancelled, so timed-out work never exceeds the worker limit.
func (s *Scanner) analyzeFile(ctx context.Context, path string) (*analysis.Result, error) {
	fileCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		fileCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	type outcome struct {
		result *analysis.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		w, err := s.load(path, s.sampleRate)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		r, err := s.analyzer.Analyze(Title(path), w)
		done <- outcome{result: r, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-fileCtx.Done():
	}

	err := fmt.Errorf("analyzing %s: %w", path, fileCtx.Err())
	if ctx.Err() == nil {
		s.log.Warn("timed out, waiting for analysis to finish", zap.String("path", path), zap.Duration("timeout", s.timeout))
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return nil, err
}
