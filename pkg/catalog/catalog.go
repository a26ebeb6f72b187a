// Package catalog persists analysis results in SQLite so tracks can be
// listed and matched for harmonic mixing.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/nzoschke/trackmeta/pkg/analysis"
)

// DefaultPath is used when no catalog path is configured.
const DefaultPath = "trackmeta.sqlite3"

// ErrNotFound is returned when no track matches a lookup.
var ErrNotFound = errors.New("track not found")

// Track is the stored summary of one analyzed file.
type Track struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id" yaml:"id"`
	Path            string    `gorm:"uniqueIndex:idx_track_path" json:"path" yaml:"path"`
	Title           string    `json:"title" yaml:"title"`
	BPM             float64   `gorm:"index:idx_track_bpm" json:"bpm" yaml:"bpm"`
	TempoConfidence float64   `json:"tempo_confidence" yaml:"tempo_confidence"`
	PitchClass      string    `json:"pitch_class" yaml:"pitch_class"`
	Mode            string    `json:"mode" yaml:"mode"`
	Camelot         string    `gorm:"index:idx_track_camelot" json:"camelot" yaml:"camelot"`
	KeyConfidence   float64   `json:"key_confidence" yaml:"key_confidence"`
	Duration        float64   `json:"duration" yaml:"duration"`
	SampleRate      int       `json:"sample_rate" yaml:"sample_rate"`
	PeakCount       int       `json:"peak_count" yaml:"peak_count"`
	Degenerate      bool      `json:"degenerate" yaml:"degenerate"`
	Phrases         []Phrase  `gorm:"constraint:OnDelete:CASCADE" json:"phrases" yaml:"phrases"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"updated_at"`
}

// Phrase is one labeled interval of a track.
type Phrase struct {
	ID       uint    `gorm:"primaryKey;autoIncrement" json:"-" yaml:"-"`
	TrackID  string  `gorm:"type:varchar(36);index:idx_phrase_track" json:"-" yaml:"-"`
	Label    string  `json:"label" yaml:"label"`
	StartSec float64 `json:"start" yaml:"start"`
	EndSec   float64 `json:"end" yaml:"end"`
}

// Summary returns the track in the short result form.
func (t *Track) Summary() analysis.Summary {
	key := ""
	if t.PitchClass != "" {
		key = t.PitchClass + " " + t.Mode
	}
	return analysis.Summary{
		Title:    t.Title,
		BPM:      t.BPM,
		Key:      key,
		Camelot:  t.Camelot,
		Duration: t.Duration,
	}
}

// Catalog is a SQLite-backed track store. It is safe for concurrent use.
type Catalog struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Open opens or creates the catalog at path and migrates its schema.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Track{}, &Phrase{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Catalog{db: db, sqlDB: sqlDB}, nil
}

// Close releases the database.
func (c *Catalog) Close() error {
	if c == nil || c.sqlDB == nil {
		return nil
	}
	return c.sqlDB.Close()
}

// Save inserts or replaces the track stored for path.
func (c *Catalog) Save(ctx context.Context, path string, r *analysis.Result) (*Track, error) {
	track := newTrack(path, r)

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Track
		err := tx.Where("path = ?", path).First(&existing).Error
		switch {
		case err == nil:
			track.ID = existing.ID
			track.CreatedAt = existing.CreatedAt
			if err := tx.Where("track_id = ?", existing.ID).Delete(&Phrase{}).Error; err != nil {
				return fmt.Errorf("clearing phrases: %w", err)
			}
			if err := tx.Omit(clause.Associations).Save(track).Error; err != nil {
				return fmt.Errorf("updating track: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			track.ID = uuid.NewString()
			if err := tx.Omit(clause.Associations).Create(track).Error; err != nil {
				return fmt.Errorf("creating track: %w", err)
			}
		default:
			return fmt.Errorf("querying existing track: %w", err)
		}

		for i := range track.Phrases {
			track.Phrases[i].TrackID = track.ID
		}
		if len(track.Phrases) > 0 {
			if err := tx.CreateInBatches(track.Phrases, 500).Error; err != nil {
				return fmt.Errorf("storing phrases: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return track, nil
}

// Get returns the track with id and its phrases.
func (c *Catalog) Get(ctx context.Context, id string) (*Track, error) {
	return c.first(ctx, "id = ?", id)
}

// FindByPath returns the track stored for path.
func (c *Catalog) FindByPath(ctx context.Context, path string) (*Track, error) {
	return c.first(ctx, "path = ?", path)
}

func (c *Catalog) first(ctx context.Context, query string, arg any) (*Track, error) {
	var t Track
	err := c.db.WithContext(ctx).Preload("Phrases", orderPhrases).Where(query, arg).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}
	return &t, nil
}

// List returns every track ordered by title then path.
func (c *Catalog) List(ctx context.Context) ([]Track, error) {
	var tracks []Track
	if err := c.db.WithContext(ctx).Preload("Phrases", orderPhrases).Order("title, path").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	return tracks, nil
}

// Delete removes a track and its phrases.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&Phrase{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Track{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	})
}

// Compatible returns tracks whose key is harmonically compatible with
// camelot, ordered by BPM. If bpm is positive only tracks within tolerance
// BPM of it are returned.
func (c *Catalog) Compatible(ctx context.Context, camelot string, bpm, tolerance float64) ([]Track, error) {
	code, err := analysis.ParseCamelot(camelot)
	if err != nil {
		return nil, err
	}

	var codes []string
	for _, n := range code.Neighbors() {
		codes = append(codes, n.String())
	}

	q := c.db.WithContext(ctx).Preload("Phrases", orderPhrases).Where("camelot IN ?", codes)
	if bpm > 0 {
		q = q.Where("bpm BETWEEN ? AND ?", bpm-tolerance, bpm+tolerance)
	}

	var tracks []Track
	if err := q.Order("bpm, title").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("querying compatible tracks: %w", err)
	}
	return tracks, nil
}

func orderPhrases(db *gorm.DB) *gorm.DB {
	return db.Order("start_sec")
}

func newTrack(path string, r *analysis.Result) *Track {
	t := &Track{
		Path:            path,
		Title:           r.Title,
		BPM:             r.Tempo.BPM,
		TempoConfidence: r.Tempo.Confidence,
		PitchClass:      r.Key.PitchClass,
		Mode:            string(r.Key.Mode),
		Camelot:         r.Key.Camelot,
		KeyConfidence:   r.Key.Confidence,
		Duration:        r.Duration,
		SampleRate:      r.SampleRate,
		PeakCount:       len(r.Peaks),
		Degenerate:      len(r.Warnings) > 0,
	}
	for _, li := range r.Phrases.Timeline() {
		t.Phrases = append(t.Phrases, Phrase{
			Label:    string(li.Label),
			StartSec: li.Start,
			EndSec:   li.End,
		})
	}
	return t
}
