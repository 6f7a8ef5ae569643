package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a Telegram user known to the mini app. Balances are stored in
// cents and must never go negative.
type User struct {
	bun.BaseModel `bun:"table:tg_users,alias:u"`

	TelegramID   int64     `bun:"telegram_id,pk"`
	Username     string    `bun:"username"`
	FirstName    string    `bun:"first_name"`
	LastName     string    `bun:"last_name"`
	LanguageCode string    `bun:"language_code"`
	IsPremium    bool      `bun:"is_premium,notnull,default:false"`
	BalanceCents int64     `bun:"balance_cents,notnull,default:0"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}
