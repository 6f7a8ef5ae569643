package quests

import "context"

// CheckResult is the three-valued answer of a subscription check. A failed or
// timed-out call is CheckUnverifiable, which is not the same as a confirmed
// CheckNotSubscribed: unverifiable answers must never reset status or block a
// later retry.
type CheckResult int

const (
	CheckUnverifiable CheckResult = iota
	CheckSubscribed
	CheckNotSubscribed
)

func (r CheckResult) String() string {
	switch r {
	case CheckSubscribed:
		return "subscribed"
	case CheckNotSubscribed:
		return "not_subscribed"
	default:
		return "unverifiable"
	}
}

// BalanceStore reads and mutates user balances. CreditIfNotCompleted is the
// single serialization point for reward grants: it must combine the status
// write and the balance credit in one atomic storage operation, guarded by
// "status is not yet completed". Of N racing calls for the same (user, quest)
// exactly one may observe granted=true.
type BalanceStore interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	CreditIfNotCompleted(ctx context.Context, userID int64, questID string, amountCents int64) (granted bool, newBalance int64, err error)
}

// StatusStore holds the per (user, quest) status rows. Set is used only for
// non-reward transitions; transitions into StatusCompleted go through
// BalanceStore.CreditIfNotCompleted.
type StatusStore interface {
	GetAll(ctx context.Context, userID int64) (map[string]Status, error)
	Set(ctx context.Context, userID int64, questID string, status Status) error
}

// CounterStore holds monotonically increasing per (user, key) counters.
type CounterStore interface {
	Get(ctx context.Context, userID int64, key string) (int64, error)
	Increment(ctx context.Context, userID int64, key string, delta int64) (int64, error)
}

// SubscriptionOracle answers channel membership questions, usually by calling
// the Telegram Bot API. Transport failures surface as CheckUnverifiable (with
// or without an accompanying error).
type SubscriptionOracle interface {
	CheckMembership(ctx context.Context, userID int64, channel string) (CheckResult, error)
}
