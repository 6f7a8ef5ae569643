package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/watchquest/watchquest/watchquest/database/models"
	"github.com/watchquest/watchquest/watchquest/quests"
)

type QuestStatusRepository interface {
	GetAll(ctx context.Context, userID int64) (map[string]quests.Status, error)
	Set(ctx context.Context, userID int64, questID string, status quests.Status) error
}

type questStatusRepository struct {
	db *bun.DB
}

func NewQuestStatusRepository(db *bun.DB) QuestStatusRepository {
	return &questStatusRepository{db: db}
}

func (r *questStatusRepository) GetAll(ctx context.Context, userID int64) (map[string]quests.Status, error) {
	var rows []models.UserQuestStatus
	err := r.db.NewSelect().
		Model(&rows).
		Where("telegram_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get quest statuses for user %d: %w", userID, err)
	}

	statuses := make(map[string]quests.Status, len(rows))
	for _, row := range rows {
		statuses[row.QuestID] = quests.Status(row.Status)
	}
	return statuses, nil
}

// Set upserts a non-terminal status transition. Completed rows are left
// untouched; only CreditIfNotCompleted may write that status.
func (r *questStatusRepository) Set(ctx context.Context, userID int64, questID string, status quests.Status) error {
	_, err := r.db.NewInsert().
		Model(&models.UserQuestStatus{
			TelegramID: userID,
			QuestID:    questID,
			Status:     string(status),
			UpdatedAt:  time.Now(),
		}).
		On("CONFLICT (telegram_id, quest_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Where("uqs.status <> ?", string(quests.StatusCompleted)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set quest %s status for user %d: %w", questID, userID, err)
	}
	return nil
}
