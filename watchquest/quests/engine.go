package quests

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru"
)

// completedCacheSize bounds the in-process cache of (user, quest) pairs known
// to be completed. Completed is terminal, so cached entries never go stale.
const completedCacheSize = 16384

// Engine ties the quest registry, the state machine and the reward ledger
// together. It is stateless between calls apart from the registry and the
// completed-grant cache; all shared mutable state lives in the stores.
type Engine struct {
	registry *Registry
	balances BalanceStore
	statuses StatusStore
	counters CounterStore
	oracle   SubscriptionOracle

	completed *lru.Cache
}

func NewEngine(registry *Registry, balances BalanceStore, statuses StatusStore, counters CounterStore, oracle SubscriptionOracle) *Engine {
	cache, _ := lru.New(completedCacheSize)
	return &Engine{
		registry:  registry,
		balances:  balances,
		statuses:  statuses,
		counters:  counters,
		oracle:    oracle,
		completed: cache,
	}
}

// VerifyResult reports the outcome of a verify or claim attempt.
type VerifyResult struct {
	// Completed is true when the quest is completed after this call, whether
	// the reward was granted now or earlier.
	Completed bool

	// Already is true when the quest was completed before this call; no
	// reward was credited.
	Already bool

	// Unverifiable is true when the external check could not answer. Status
	// and balance are untouched and the caller should retry later.
	Unverifiable bool

	// RewardCents is the amount credited by this call, zero if none.
	RewardCents int64

	// NewBalance is the balance after a successful grant.
	NewBalance int64
}

// ActivityResult reports a counter increment and the milestone quests it
// promoted to ready_to_claim.
type ActivityResult struct {
	NewCount   int64
	NewlyReady []string
}

// StatusReport is the per-user view served to the mini-app.
type StatusReport struct {
	BalanceCents int64
	Quests       map[string]Status
	Counters     map[string]int64
}

// List returns all quest definitions in configuration order.
func (e *Engine) List() []Definition {
	return e.registry.List()
}

// Statuses returns the user's balance, quest statuses and milestone counters.
func (e *Engine) Statuses(ctx context.Context, userID int64) (StatusReport, error) {
	if userID <= 0 {
		return StatusReport{}, fmt.Errorf("%w: user id %d", ErrInvalidInput, userID)
	}

	balance, err := e.balances.Balance(ctx, userID)
	if err != nil {
		return StatusReport{}, fmt.Errorf("failed to get balance: %w", err)
	}

	statuses, err := e.statuses.GetAll(ctx, userID)
	if err != nil {
		return StatusReport{}, fmt.Errorf("failed to get quest statuses: %w", err)
	}

	counters := make(map[string]int64)
	for _, key := range e.registry.CounterKeys() {
		value, err := e.counters.Get(ctx, userID, key)
		if err != nil {
			return StatusReport{}, fmt.Errorf("failed to get counter %s: %w", key, err)
		}
		counters[key] = value
	}

	return StatusReport{
		BalanceCents: balance,
		Quests:       statuses,
		Counters:     counters,
	}, nil
}

// MarkVisited records that the user opened the quest's link. It only moves
// none to visited; ready_to_claim and completed are never downgraded.
func (e *Engine) MarkVisited(ctx context.Context, userID int64, questID string) error {
	if userID <= 0 || questID == "" {
		return fmt.Errorf("%w: user %d quest %q", ErrInvalidInput, userID, questID)
	}
	if _, err := e.registry.Get(questID); err != nil {
		return err
	}

	current, err := e.currentStatus(ctx, userID, questID)
	if err != nil {
		return err
	}
	if current != StatusNone {
		return nil
	}

	if err := e.statuses.Set(ctx, userID, questID, StatusVisited); err != nil {
		return fmt.Errorf("failed to set quest status: %w", err)
	}

	slog.Debug("Quest marked as visited",
		slog.Int64("user_id", userID),
		slog.String("quest_id", questID))
	return nil
}

// Verify checks whether the quest's completion condition holds and, if so,
// grants the reward exactly once.
func (e *Engine) Verify(ctx context.Context, userID int64, questID string) (VerifyResult, error) {
	if userID <= 0 || questID == "" {
		return VerifyResult{}, fmt.Errorf("%w: user %d quest %q", ErrInvalidInput, userID, questID)
	}

	def, err := e.registry.Get(questID)
	if err != nil {
		return VerifyResult{}, err
	}

	if e.completed.Contains(completedKey(userID, questID)) {
		return VerifyResult{Completed: true, Already: true}, nil
	}

	current, err := e.currentStatus(ctx, userID, questID)
	if err != nil {
		return VerifyResult{}, err
	}
	if current == StatusCompleted {
		e.completed.Add(completedKey(userID, questID), struct{}{})
		return VerifyResult{Completed: true, Already: true}, nil
	}

	return verifierFor(def.Kind).verify(ctx, e, userID, def, current)
}

// Claim converts ready_to_claim into completed for a milestone quest and
// credits the reward. It never re-checks the counter; it trusts the status
// produced by RecordActivity.
func (e *Engine) Claim(ctx context.Context, userID int64, questID string) (VerifyResult, error) {
	if userID <= 0 || questID == "" {
		return VerifyResult{}, fmt.Errorf("%w: user %d quest %q", ErrInvalidInput, userID, questID)
	}

	def, err := e.registry.Get(questID)
	if err != nil {
		return VerifyResult{}, err
	}
	if def.Kind != KindMilestone {
		return VerifyResult{}, fmt.Errorf("%w: quest %s is not claimable", ErrInvalidInput, questID)
	}

	current, err := e.currentStatus(ctx, userID, questID)
	if err != nil {
		return VerifyResult{}, err
	}
	switch current {
	case StatusCompleted:
		e.completed.Add(completedKey(userID, questID), struct{}{})
		return VerifyResult{Completed: true, Already: true}, nil
	case StatusReadyToClaim:
		return e.grant(ctx, userID, def)
	default:
		return VerifyResult{}, nil
	}
}

// RecordActivity increments the user's counter and promotes every milestone
// quest watching it whose goal is now reached. Re-processing the same or a
// higher value is a no-op for already promoted or completed quests.
func (e *Engine) RecordActivity(ctx context.Context, userID int64, counterKey string, delta int64) (ActivityResult, error) {
	if userID <= 0 || counterKey == "" || delta < 1 {
		return ActivityResult{}, fmt.Errorf("%w: user %d counter %q delta %d", ErrInvalidInput, userID, counterKey, delta)
	}

	newCount, err := e.counters.Increment(ctx, userID, counterKey, delta)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("failed to increment counter: %w", err)
	}

	watching := e.registry.Milestones(counterKey)
	if len(watching) == 0 {
		return ActivityResult{NewCount: newCount}, nil
	}

	statuses, err := e.statuses.GetAll(ctx, userID)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("failed to get quest statuses: %w", err)
	}

	result := ActivityResult{NewCount: newCount}
	for _, def := range watching {
		if newCount < def.Goal {
			continue
		}
		current := statuses[def.ID]
		if current == StatusReadyToClaim || current == StatusCompleted {
			continue
		}
		if err := e.statuses.Set(ctx, userID, def.ID, StatusReadyToClaim); err != nil {
			return ActivityResult{}, fmt.Errorf("failed to promote quest %s: %w", def.ID, err)
		}
		result.NewlyReady = append(result.NewlyReady, def.ID)

		slog.Info("Milestone quest ready to claim",
			slog.Int64("user_id", userID),
			slog.String("quest_id", def.ID),
			slog.Int64("count", newCount),
			slog.Int64("goal", def.Goal))
	}

	return result, nil
}

// grant performs the paired status+balance transition into completed. The
// store decides the race: of N concurrent calls exactly one gets granted=true.
func (e *Engine) grant(ctx context.Context, userID int64, def Definition) (VerifyResult, error) {
	granted, newBalance, err := e.balances.CreditIfNotCompleted(ctx, userID, def.ID, def.RewardCents)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to grant reward: %w", err)
	}

	e.completed.Add(completedKey(userID, def.ID), struct{}{})

	if !granted {
		// Lost the race or already rewarded earlier; not an error.
		return VerifyResult{Completed: true, Already: true, NewBalance: newBalance}, nil
	}

	slog.Info("Quest reward granted",
		slog.Int64("user_id", userID),
		slog.String("quest_id", def.ID),
		slog.Int64("reward_cents", def.RewardCents),
		slog.Int64("new_balance_cents", newBalance))

	return VerifyResult{
		Completed:   true,
		RewardCents: def.RewardCents,
		NewBalance:  newBalance,
	}, nil
}

func (e *Engine) currentStatus(ctx context.Context, userID int64, questID string) (Status, error) {
	statuses, err := e.statuses.GetAll(ctx, userID)
	if err != nil {
		return StatusNone, fmt.Errorf("failed to get quest statuses: %w", err)
	}
	current, ok := statuses[questID]
	if !ok {
		return StatusNone, nil
	}
	return current, nil
}

func completedKey(userID int64, questID string) string {
	return fmt.Sprintf("%d/%s", userID, questID)
}
