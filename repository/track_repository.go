package repository

import (
	"context"
	"errors"
	"fmt"

	"tunestream/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTrackNotFound is returned when no catalog entry matches the id.
var ErrTrackNotFound = errors.New("track not found")

// TrackRepository defines the catalog operations.
type TrackRepository interface {
	GetTrackByID(ctx context.Context, id string) (*model.Track, error)
	CreateTrack(ctx context.Context, track *model.Track) error
	ListTracks(ctx context.Context, limit int) ([]*model.Track, error)
	DeleteTrack(ctx context.Context, id string) error
}

// gormTrackRepository GORM 实现
type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建 GORM 曲目仓库
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// GetTrackByID retrieves a track by its ID.
func (r *gormTrackRepository) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("track %s: %w", id, ErrTrackNotFound)
		}
		return nil, fmt.Errorf("failed to get track %s: %w", id, err)
	}
	return &track, nil
}

// CreateTrack inserts a track, assigning a UUID when ID is empty.
func (r *gormTrackRepository) CreateTrack(ctx context.Context, track *model.Track) error {
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		return fmt.Errorf("failed to create track %q: %w", track.Title, err)
	}
	return nil
}

// ListTracks returns the newest tracks first.
func (r *gormTrackRepository) ListTracks(ctx context.Context, limit int) ([]*model.Track, error) {
	tracks := make([]*model.Track, 0)
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

// DeleteTrack removes the catalog entry only; the stored object is untouched.
func (r *gormTrackRepository) DeleteTrack(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Track{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete track %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("track %s: %w", id, ErrTrackNotFound)
	}
	return nil
}
