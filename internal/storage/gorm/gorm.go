// Package gormstorage implements the storage.Backend interface on top of any
// GORM dialect. Recordings are stored as one row each with the JSON document
// in a datatypes.JSON column.
package gormstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/trackfit/autobone/internal/storage/codec"
	"github.com/trackfit/autobone/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tags separate freshly captured recordings from the ones queued for
// processing.
const (
	TagCapture = "capture"
	TagLoad    = "load"
)

// ErrRecordingNotFound is returned when a named recording does not exist.
var ErrRecordingNotFound = errors.New("recording not found")

// RecordingModel is one stored recording.
type RecordingModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Name         string `gorm:"size:128;index:idx_recording_tag_name"`
	Tag          string `gorm:"size:16;index:idx_recording_tag_name"`
	TrackerCount int
	FrameCount   int
	Data         datatypes.JSON
}

func (RecordingModel) TableName() string {
	return "recordings"
}

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB *gorm.DB
	// Open connects lazily on Init when DB is nil.
	Open   func() (*gorm.DB, error)
	Logger *slog.Logger
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection, nil before Init when opened lazily.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init connects if needed and migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		if b.deps.Open == nil {
			return fmt.Errorf("no database configured")
		}
		db, err := b.deps.Open()
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		b.deps.DB = db
	}

	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(&RecordingModel{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newModel(name, tag string, frames *core.PoseFrames) (RecordingModel, error) {
	data, err := json.Marshal(codec.Encode(frames))
	if err != nil {
		return RecordingModel{}, fmt.Errorf("failed to encode recording: %w", err)
	}
	return RecordingModel{
		ID:           uuid.New(),
		Name:         name,
		Tag:          tag,
		TrackerCount: frames.TrackerCount(),
		FrameCount:   frames.MaxFrameCount(),
		Data:         datatypes.JSON(data),
	}, nil
}

func (b *Backend) replace(tx *gorm.DB, m RecordingModel) error {
	if err := tx.Where("name = ? AND tag = ?", m.Name, m.Tag).Delete(&RecordingModel{}).Error; err != nil {
		return fmt.Errorf("failed to remove previous %s: %w", m.Name, err)
	}
	if err := tx.Create(&m).Error; err != nil {
		return fmt.Errorf("failed to insert %s: %w", m.Name, err)
	}
	return nil
}

// WriteRecording replaces the captured recording called name.
func (b *Backend) WriteRecording(ctx context.Context, name string, frames *core.PoseFrames) error {
	m, err := newModel(name, TagCapture, frames)
	if err != nil {
		return err
	}
	err = b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return b.replace(tx, m)
	})
	if err != nil {
		return err
	}
	b.deps.Logger.Info("Recording written", "recording", name,
		"trackers", m.TrackerCount, "frames", m.FrameCount)
	return nil
}

// SaveRecording stores frames under the next free permanent name.
func (b *Backend) SaveRecording(ctx context.Context, frames *core.PoseFrames) (string, error) {
	var name string
	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&RecordingModel{}).
			Where("tag = ?", TagCapture).
			Pluck("name", &existing).Error; err != nil {
			return fmt.Errorf("failed to list recordings: %w", err)
		}
		name = codec.NextPermanentName(existing)

		m, err := newModel(name, TagCapture, frames)
		if err != nil {
			return err
		}
		return b.replace(tx, m)
	})
	if err != nil {
		return "", err
	}
	b.deps.Logger.Info("Recording saved", "recording", name)
	return name, nil
}

// LoadRecordings decodes every recording tagged for processing.
func (b *Backend) LoadRecordings(ctx context.Context) ([]core.Recording, error) {
	var rows []RecordingModel
	if err := b.deps.DB.WithContext(ctx).
		Where("tag = ?", TagLoad).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}

	recs := make([]core.Recording, 0, len(rows))
	for _, row := range rows {
		var doc codec.RecordingJSON
		if err := json.Unmarshal(row.Data, &doc); err != nil {
			return nil, fmt.Errorf("recording %s: %w", row.Name, err)
		}
		frames, err := codec.Decode(doc)
		if err != nil {
			return nil, fmt.Errorf("recording %s: %w", row.Name, err)
		}
		recs = append(recs, core.Recording{Name: row.Name, Frames: frames})
	}
	codec.SortRecordings(recs)
	return recs, nil
}

// PromoteRecording queues a captured recording for processing under the
// same name.
func (b *Backend) PromoteRecording(ctx context.Context, name string) error {
	return b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var src RecordingModel
		err := tx.Where("name = ? AND tag = ?", name, TagCapture).First(&src).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%s: %w", name, ErrRecordingNotFound)
		}
		if err != nil {
			return err
		}

		dst := src
		dst.ID = uuid.New()
		dst.Tag = TagLoad
		dst.CreatedAt = time.Time{}
		dst.UpdatedAt = time.Time{}
		return b.replace(tx, dst)
	})
}
