package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserCounter is a monotonically increasing activity counter, keyed by
// user and counter name ("videos_watched", "offer:<quest>").
type UserCounter struct {
	bun.BaseModel `bun:"table:user_counters,alias:uc"`

	ID         int64     `bun:"id,pk,autoincrement"`
	TelegramID int64     `bun:"telegram_id,notnull,unique:user_counter"`
	CounterKey string    `bun:"counter_key,notnull,unique:user_counter"`
	Value      int64     `bun:"value,notnull,default:0"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}
