package services

import (
	"context"
	"fmt"

	"github.com/watchquest/watchquest/watchquest/database/repositories"
)

// VideoItem is a feed entry handed to the mini app.
type VideoItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// VideoService pairs the catalog with media URL resolution.
type VideoService struct {
	videos repositories.VideoRepository
	spaces *SpacesService
}

func NewVideoService(videos repositories.VideoRepository, spaces *SpacesService) *VideoService {
	return &VideoService{videos: videos, spaces: spaces}
}

// Random returns a random active clip, or nil when the catalog is empty.
func (s *VideoService) Random(ctx context.Context) (*VideoItem, error) {
	video, err := s.videos.Random(ctx)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, nil
	}
	return &VideoItem{
		ID:    video.ID,
		Title: video.Title,
		URL:   s.spaces.VideoURL(video.Location),
	}, nil
}

// RecordWatched bumps the per-video watch count.
func (s *VideoService) RecordWatched(ctx context.Context, videoID int64) error {
	if videoID <= 0 {
		return fmt.Errorf("invalid video id %d", videoID)
	}
	return s.videos.IncrementWatched(ctx, videoID)
}

// RecordClicked bumps the per-video click count.
func (s *VideoService) RecordClicked(ctx context.Context, videoID int64) error {
	if videoID <= 0 {
		return fmt.Errorf("invalid video id %d", videoID)
	}
	return s.videos.IncrementClicked(ctx, videoID)
}
