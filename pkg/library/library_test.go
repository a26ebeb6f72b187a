package library

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nzoschke/trackmeta/pkg/analysis"
	"github.com/nzoschke/trackmeta/pkg/audio"
	"github.com/nzoschke/trackmeta/pkg/catalog"
)

// touch creates empty files under dir.
func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}

// toneLoader ignores the file and returns a short A440 tone with clicks.
func toneLoader(path string, rate int) (*analysis.Waveform, error) {
	samples := make([]float32, 3*rate)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		if i%(rate/2) == 0 {
			samples[i]++
		}
	}
	return &analysis.Waveform{Samples: samples, SampleRate: rate}, nil
}

func newAnalyzer(t *testing.T) *analysis.Analyzer {
	t.Helper()
	a, err := analysis.New(analysis.DefaultConfig())
	require.NoError(t, err)
	return a
}

// memStore records saves in memory.
type memStore struct {
	mu     sync.Mutex
	tracks map[string]*analysis.Result
	err    error
}

func newMemStore() *memStore {
	return &memStore{tracks: map[string]*analysis.Result{}}
}

func (m *memStore) FindByPath(_ context.Context, path string) (*catalog.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.tracks[path]; !ok {
		return nil, catalog.ErrNotFound
	}
	return &catalog.Track{Path: path}, nil
}

func (m *memStore) Save(_ context.Context, path string, r *analysis.Result) (*catalog.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[path] = r
	return &catalog.Track{Path: path, Title: r.Title}, nil
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.wav", "a.MP3", "notes.txt", "sub/c.wav", "sub/cover.jpg")

	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.MP3"),
		filepath.Join(dir, "b.wav"),
		filepath.Join(dir, "sub", "c.wav"),
	}, paths)

	paths, err = Discover(filepath.Join(dir, "b.wav"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.wav")}, paths)

	_, err = Discover(filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	_, err = Discover(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "My Track", Title("/music/My Track.mp3"))
	assert.Equal(t, "a.b", Title("a.b.wav"))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "one.wav", "two.mp3", "sub/three.wav", "skip.txt")
	store := newMemStore()

	sc := NewScanner(newAnalyzer(t),
		WithLoader(toneLoader),
		WithStore(store),
		WithWorkers(2),
		WithLogger(zaptest.NewLogger(t)),
	)
	report, err := sc.Scan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Empty(t, report.Failed)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, filepath.Join(dir, "one.wav"), report.Results[0].Path)
	assert.Equal(t, "one", report.Results[0].Result.Title)
	assert.Equal(t, "A", report.Results[0].Result.Key.PitchClass)
	assert.Len(t, store.tracks, 3)

	// second pass finds everything cataloged
	report, err = sc.Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Len(t, report.Skipped, 3)

	forced := NewScanner(newAnalyzer(t), WithLoader(toneLoader), WithStore(store), WithForce(true))
	report, err = forced.Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, report.Results, 3)
}

func TestScanCollectsFailures(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "good.wav", "bad.wav", "silent.wav")
	errCorrupt := errors.New("corrupt")

	load := func(path string, rate int) (*analysis.Waveform, error) {
		switch filepath.Base(path) {
		case "bad.wav":
			return nil, errCorrupt
		case "silent.wav":
			return &analysis.Waveform{SampleRate: rate}, nil
		}
		return toneLoader(path, rate)
	}

	report, err := NewScanner(newAnalyzer(t), WithLoader(load)).Scan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, filepath.Join(dir, "bad.wav"), report.Failed[0].Path)
	assert.ErrorIs(t, report.Failed[0].Err, errCorrupt)
	assert.Equal(t, "corrupt", report.Failed[0].Error)
	assert.ErrorIs(t, report.Failed[1].Err, analysis.ErrEmptyWaveform)
}

func TestScanStoreError(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav")
	store := newMemStore()
	store.err = errors.New("database is locked")

	report, err := NewScanner(newAnalyzer(t), WithLoader(toneLoader), WithStore(store)).Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Error, "locked")
}

func TestScanTimeout(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "slow.wav", "fast.wav")

	release := make(chan struct{})
	time.AfterFunc(2*time.Second, func() { close(release) })
	load := func(path string, rate int) (*analysis.Waveform, error) {
		if filepath.Base(path) == "slow.wav" {
			<-release
		}
		return toneLoader(path, rate)
	}

	report, err := NewScanner(newAnalyzer(t), WithLoader(load), WithTimeout(time.Second)).Scan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, filepath.Join(dir, "fast.wav"), report.Results[0].Path)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, context.DeadlineExceeded)
}

func TestScanTimeoutHoldsWorker(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a-slow.wav", "b-fast.wav")

	var mu sync.Mutex
	var active, peak int
	release := make(chan struct{})
	time.AfterFunc(1500*time.Millisecond, func() { close(release) })
	load := func(path string, rate int) (*analysis.Waveform, error) {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()
		defer func() {
			mu.Lock()
			active--
			mu.Unlock()
		}()

		if filepath.Base(path) == "a-slow.wav" {
			<-release
		}
		return toneLoader(path, rate)
	}

	report, err := NewScanner(newAnalyzer(t),
		WithLoader(load),
		WithWorkers(1),
		WithTimeout(time.Second),
	).Scan(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, peak)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, filepath.Join(dir, "a-slow.wav"), report.Failed[0].Path)
	assert.ErrorIs(t, report.Failed[0].Err, context.DeadlineExceeded)
	require.Len(t, report.Results, 1)
}

func TestScanCancelled(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav", "b.wav")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner(newAnalyzer(t), WithLoader(toneLoader)).Scan(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanCatalog(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav", "b.wav")

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.sqlite3"))
	require.NoError(t, err)
	defer cat.Close()

	report, err := NewScanner(newAnalyzer(t), WithLoader(toneLoader), WithStore(cat), WithWorkers(4)).Scan(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	tracks, err := cat.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "a", tracks[0].Title)
	assert.Equal(t, "11B", tracks[0].Camelot)
}
