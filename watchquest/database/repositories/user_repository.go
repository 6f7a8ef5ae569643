package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/uptrace/bun"
	"github.com/watchquest/watchquest/watchquest/database/models"
	"github.com/watchquest/watchquest/watchquest/quests"
)

type UserRepository interface {
	Ensure(ctx context.Context, user *models.User) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Balance(ctx context.Context, userID int64) (int64, error)
	CreditIfNotCompleted(ctx context.Context, userID int64, questID string, amountCents int64) (bool, int64, error)
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

// Ensure inserts the user row if it does not exist yet and refreshes the
// mutable profile fields if it does.
func (r *userRepository) Ensure(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (telegram_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("first_name = EXCLUDED.first_name").
		Set("last_name = EXCLUDED.last_name").
		Set("language_code = EXCLUDED.language_code").
		Set("is_premium = EXCLUDED.is_premium").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", user.TelegramID, err)
	}
	return nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("telegram_id = ?", telegramID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %d: %w", telegramID, err)
	}
	return user, nil
}

func (r *userRepository) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.db.NewSelect().
		Model((*models.User)(nil)).
		Column("balance_cents").
		Where("telegram_id = ?", userID).
		Scan(ctx, &balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance for user %d: %w", userID, err)
	}
	return balance, nil
}

// CreditIfNotCompleted marks the quest completed and credits the reward in
// one transaction. The status flip is conditional on the row not already
// being completed, so concurrent callers race on a single row update and
// at most one of them observes granted=true.
func (r *userRepository) CreditIfNotCompleted(ctx context.Context, userID int64, questID string, amountCents int64) (bool, int64, error) {
	var granted bool
	var newBalance int64

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		res, err := tx.NewInsert().
			Model(&models.UserQuestStatus{
				TelegramID: userID,
				QuestID:    questID,
				Status:     string(quests.StatusCompleted),
				UpdatedAt:  now,
			}).
			On("CONFLICT (telegram_id, quest_id) DO UPDATE").
			Set("status = EXCLUDED.status").
			Set("updated_at = EXCLUDED.updated_at").
			Where("uqs.status <> ?", string(quests.StatusCompleted)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark quest %s completed: %w", questID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check completion result: %w", err)
		}
		if affected == 0 {
			// Lost the race or the quest was completed earlier.
			granted = false
			return tx.NewSelect().
				Model((*models.User)(nil)).
				Column("balance_cents").
				Where("telegram_id = ?", userID).
				Scan(ctx, &newBalance)
		}

		_, err = tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("balance_cents = balance_cents + ?", amountCents).
			Set("updated_at = ?", now).
			Where("telegram_id = ?", userID).
			Returning("balance_cents").
			Exec(ctx, &newBalance)
		if err != nil {
			return fmt.Errorf("failed to credit user %d: %w", userID, err)
		}

		granted = true
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	if granted {
		slog.Debug("Reward credited",
			slog.String("type", "db"),
			slog.Int64("user_id", userID),
			slog.String("quest_id", questID),
			slog.Int64("amount_cents", amountCents))
	}
	return granted, newBalance, nil
}
