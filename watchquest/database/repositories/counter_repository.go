package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/watchquest/watchquest/watchquest/database/models"
)

type CounterRepository interface {
	Get(ctx context.Context, userID int64, key string) (int64, error)
	Increment(ctx context.Context, userID int64, key string, delta int64) (int64, error)
}

type counterRepository struct {
	db *bun.DB
}

func NewCounterRepository(db *bun.DB) CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) Get(ctx context.Context, userID int64, key string) (int64, error) {
	var value int64
	err := r.db.NewSelect().
		Model((*models.UserCounter)(nil)).
		Column("value").
		Where("telegram_id = ?", userID).
		Where("counter_key = ?", key).
		Scan(ctx, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get counter %s for user %d: %w", key, userID, err)
	}
	return value, nil
}

// Increment bumps the counter atomically and returns the value after the
// bump. Missing rows start at zero.
func (r *counterRepository) Increment(ctx context.Context, userID int64, key string, delta int64) (int64, error) {
	var value int64
	_, err := r.db.NewInsert().
		Model(&models.UserCounter{
			TelegramID: userID,
			CounterKey: key,
			Value:      delta,
			UpdatedAt:  time.Now(),
		}).
		On("CONFLICT (telegram_id, counter_key) DO UPDATE").
		Set("value = uc.value + EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("value").
		Exec(ctx, &value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s for user %d: %w", key, userID, err)
	}
	return value, nil
}
