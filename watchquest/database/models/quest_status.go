package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserQuestStatus is one user's progress on one quest. Absence of a row
// means the user has never interacted with the quest.
type UserQuestStatus struct {
	bun.BaseModel `bun:"table:user_quest_statuses,alias:uqs"`

	ID         int64     `bun:"id,pk,autoincrement"`
	TelegramID int64     `bun:"telegram_id,notnull,unique:user_quest"`
	QuestID    string    `bun:"quest_id,notnull,unique:user_quest"`
	Status     string    `bun:"status,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}
