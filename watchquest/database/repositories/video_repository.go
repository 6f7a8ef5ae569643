package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/watchquest/watchquest/watchquest/database/models"
)

type VideoRepository interface {
	Random(ctx context.Context) (*models.Video, error)
	IncrementWatched(ctx context.Context, videoID int64) error
	IncrementClicked(ctx context.Context, videoID int64) error
}

type videoRepository struct {
	db *bun.DB
}

func NewVideoRepository(db *bun.DB) VideoRepository {
	return &videoRepository{db: db}
}

// Random picks an active clip uniformly. Returns nil when the catalog is
// empty.
func (r *videoRepository) Random(ctx context.Context) (*models.Video, error) {
	video := new(models.Video)
	err := r.db.NewSelect().
		Model(video).
		Where("is_active = TRUE").
		OrderExpr("RANDOM()").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pick random video: %w", err)
	}
	return video, nil
}

func (r *videoRepository) IncrementWatched(ctx context.Context, videoID int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.Video)(nil)).
		Set("watched = watched + 1").
		Where("id = ?", videoID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record watch for video %d: %w", videoID, err)
	}
	return nil
}

func (r *videoRepository) IncrementClicked(ctx context.Context, videoID int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.Video)(nil)).
		Set("clicked = clicked + 1").
		Where("id = ?", videoID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record click for video %d: %w", videoID, err)
	}
	return nil
}
