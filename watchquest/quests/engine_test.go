package quests

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

// memStore is an in-memory stand-in for the Postgres-backed stores. Its
// CreditIfNotCompleted is a mutex-guarded compare-and-set so concurrency
// tests exercise real goroutine races against the same guard semantics the
// database provides.
type memStore struct {
	mu       sync.Mutex
	balances map[int64]int64
	statuses map[int64]map[string]Status
	counters map[int64]map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		balances: make(map[int64]int64),
		statuses: make(map[int64]map[string]Status),
		counters: make(map[int64]map[string]int64),
	}
}

func (m *memStore) Balance(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *memStore) CreditIfNotCompleted(_ context.Context, userID int64, questID string, amountCents int64) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses[userID][questID] == StatusCompleted {
		return false, m.balances[userID], nil
	}
	m.setLocked(userID, questID, StatusCompleted)
	m.balances[userID] += amountCents
	return true, m.balances[userID], nil
}

func (m *memStore) GetAll(_ context.Context, userID int64) (map[string]Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Status)
	for questID, status := range m.statuses[userID] {
		out[questID] = status
	}
	return out, nil
}

func (m *memStore) Set(_ context.Context, userID int64, questID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Same guard as the real store: completed rows are never overwritten.
	if m.statuses[userID][questID] == StatusCompleted {
		return nil
	}
	m.setLocked(userID, questID, status)
	return nil
}

func (m *memStore) setLocked(userID int64, questID string, status Status) {
	if m.statuses[userID] == nil {
		m.statuses[userID] = make(map[string]Status)
	}
	m.statuses[userID][questID] = status
}

func (m *memStore) Get(_ context.Context, userID int64, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[userID][key], nil
}

func (m *memStore) Increment(_ context.Context, userID int64, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters[userID] == nil {
		m.counters[userID] = make(map[string]int64)
	}
	m.counters[userID][key] += delta
	return m.counters[userID][key], nil
}

type fakeOracle struct {
	result CheckResult
	err    error
	calls  int
}

func (o *fakeOracle) CheckMembership(_ context.Context, _ int64, _ string) (CheckResult, error) {
	o.calls++
	return o.result, o.err
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]Definition{
		{ID: "welcome_follow", Kind: KindFollow, RewardCents: 50, Channel: "@chan", Title: "Follow our channel"},
		{ID: "watch_5", Kind: KindMilestone, RewardCents: 75, Goal: 5, CounterKey: "videos_watched"},
		{ID: "watch_10", Kind: KindMilestone, RewardCents: 150, Goal: 10, CounterKey: "videos_watched"},
		{ID: "offer_signup", Kind: KindExternal, RewardCents: 200, Link: "https://example.com/offer"},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func testEngine(t *testing.T, oracle *fakeOracle) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewEngine(testRegistry(t), store, store, store, oracle), store
}

func TestVerifyFollowGrantsExactlyOnce(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{result: CheckSubscribed})
	ctx := context.Background()

	got, err := engine.Verify(ctx, 123, "welcome_follow")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	want := VerifyResult{Completed: true, RewardCents: 50, NewBalance: 50}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Verify() = %+v, want %+v", got, want)
	}

	got, err = engine.Verify(ctx, 123, "welcome_follow")
	if err != nil {
		t.Fatalf("second Verify() error = %v", err)
	}
	if !got.Completed || !got.Already || got.RewardCents != 0 {
		t.Errorf("second Verify() = %+v, want already-completed with no reward", got)
	}

	if balance, _ := store.Balance(ctx, 123); balance != 50 {
		t.Errorf("balance = %d, want 50", balance)
	}
}

func TestVerifyFollowNotSubscribed(t *testing.T) {
	tests := []struct {
		name       string
		current    Status
		wantStatus Status
	}{
		{name: "visited resets to none", current: StatusVisited, wantStatus: StatusNone},
		{name: "absent row stays absent", current: "", wantStatus: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store := testEngine(t, &fakeOracle{result: CheckNotSubscribed})
			ctx := context.Background()
			if tt.current != "" {
				store.Set(ctx, 123, "welcome_follow", tt.current)
			}

			got, err := engine.Verify(ctx, 123, "welcome_follow")
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got.Completed || got.Unverifiable {
				t.Errorf("Verify() = %+v, want plain not-completed", got)
			}

			statuses, _ := store.GetAll(ctx, 123)
			if statuses["welcome_follow"] != tt.wantStatus {
				t.Errorf("status = %q, want %q", statuses["welcome_follow"], tt.wantStatus)
			}
			if balance, _ := store.Balance(ctx, 123); balance != 0 {
				t.Errorf("balance = %d, want 0", balance)
			}
		})
	}
}

func TestVerifyFollowUnverifiable(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{result: CheckUnverifiable})
	ctx := context.Background()
	store.Set(ctx, 123, "welcome_follow", StatusVisited)

	got, err := engine.Verify(ctx, 123, "welcome_follow")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !got.Unverifiable || got.Completed {
		t.Errorf("Verify() = %+v, want unverifiable", got)
	}

	// An unanswerable oracle must not downgrade status or touch the balance.
	statuses, _ := store.GetAll(ctx, 123)
	if statuses["welcome_follow"] != StatusVisited {
		t.Errorf("status = %q, want %q", statuses["welcome_follow"], StatusVisited)
	}
	if balance, _ := store.Balance(ctx, 123); balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestVerifyCompletedSkipsOracle(t *testing.T) {
	oracle := &fakeOracle{result: CheckNotSubscribed}
	engine, store := testEngine(t, oracle)
	ctx := context.Background()
	store.Set(ctx, 123, "welcome_follow", StatusCompleted)

	got, err := engine.Verify(ctx, 123, "welcome_follow")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !got.Already || oracle.calls != 0 {
		t.Errorf("Verify() = %+v with %d oracle calls, want already-completed without oracle call", got, oracle.calls)
	}
}

func TestMilestoneLifecycle(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{})
	ctx := context.Background()

	// Counter 1..4: no promotion yet.
	for i := 1; i <= 4; i++ {
		got, err := engine.RecordActivity(ctx, 123, "videos_watched", 1)
		if err != nil {
			t.Fatalf("RecordActivity() error = %v", err)
		}
		if got.NewCount != int64(i) || len(got.NewlyReady) != 0 {
			t.Errorf("RecordActivity() #%d = %+v, want count %d and no promotions", i, got, i)
		}
	}

	// Fifth view promotes watch_5 exactly once.
	got, err := engine.RecordActivity(ctx, 123, "videos_watched", 1)
	if err != nil {
		t.Fatalf("RecordActivity() error = %v", err)
	}
	if !reflect.DeepEqual(got.NewlyReady, []string{"watch_5"}) {
		t.Errorf("NewlyReady = %v, want [watch_5]", got.NewlyReady)
	}

	// Sixth view does not re-fire.
	got, err = engine.RecordActivity(ctx, 123, "videos_watched", 1)
	if err != nil {
		t.Fatalf("RecordActivity() error = %v", err)
	}
	if len(got.NewlyReady) != 0 {
		t.Errorf("NewlyReady after re-increment = %v, want none", got.NewlyReady)
	}

	if balance, _ := store.Balance(ctx, 123); balance != 0 {
		t.Errorf("balance before claim = %d, want 0", balance)
	}

	claim, err := engine.Claim(ctx, 123, "watch_5")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if !claim.Completed || claim.RewardCents != 75 || claim.NewBalance != 75 {
		t.Errorf("Claim() = %+v, want completed with reward 75", claim)
	}

	again, err := engine.Claim(ctx, 123, "watch_5")
	if err != nil {
		t.Fatalf("second Claim() error = %v", err)
	}
	if !again.Already || again.RewardCents != 0 {
		t.Errorf("second Claim() = %+v, want already-completed", again)
	}

	// Four more views reach the watch_10 goal as well.
	for i := 0; i < 4; i++ {
		got, err = engine.RecordActivity(ctx, 123, "videos_watched", 1)
		if err != nil {
			t.Fatalf("RecordActivity() error = %v", err)
		}
	}
	if !reflect.DeepEqual(got.NewlyReady, []string{"watch_10"}) {
		t.Errorf("NewlyReady at count 10 = %v, want [watch_10]", got.NewlyReady)
	}
}

func TestCompletedStatusNotDemoted(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{})
	ctx := context.Background()

	store.Set(ctx, 123, "watch_5", StatusReadyToClaim)
	claim, err := engine.Claim(ctx, 123, "watch_5")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if !claim.Completed || claim.RewardCents != 75 {
		t.Fatalf("Claim() = %+v, want completed with reward 75", claim)
	}

	// A late tracker write racing with the claim must not reopen the quest.
	if err := store.Set(ctx, 123, "watch_5", StatusReadyToClaim); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	statuses, _ := store.GetAll(ctx, 123)
	if statuses["watch_5"] != StatusCompleted {
		t.Errorf("status = %q, want %q", statuses["watch_5"], StatusCompleted)
	}

	again, err := engine.Claim(ctx, 123, "watch_5")
	if err != nil {
		t.Fatalf("second Claim() error = %v", err)
	}
	if !again.Already || again.RewardCents != 0 {
		t.Errorf("second Claim() = %+v, want already-completed", again)
	}
	if balance, _ := store.Balance(ctx, 123); balance != 75 {
		t.Errorf("balance = %d, want 75", balance)
	}
}

func TestClaimBeforeReady(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{})
	ctx := context.Background()

	got, err := engine.Claim(ctx, 123, "watch_5")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if got.Completed {
		t.Errorf("Claim() before ready = %+v, want not completed", got)
	}
	if balance, _ := store.Balance(ctx, 123); balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestVerifyMilestoneDoesNotRecheckCounter(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{})
	ctx := context.Background()

	// Counter is far past the goal but the tracker never promoted the quest;
	// verify must not grant.
	store.Increment(ctx, 123, "videos_watched", 100)
	got, err := engine.Verify(ctx, 123, "watch_5")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.Completed {
		t.Errorf("Verify() = %+v, want not completed without ready_to_claim", got)
	}
}

func TestExternalQuest(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{})
	ctx := context.Background()

	got, err := engine.Verify(ctx, 123, "offer_signup")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.Completed {
		t.Errorf("Verify() before postback = %+v, want not completed", got)
	}

	store.Increment(ctx, 123, OfferCounterKey("offer_signup"), 1)

	got, err = engine.Verify(ctx, 123, "offer_signup")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !got.Completed || got.RewardCents != 200 {
		t.Errorf("Verify() after postback = %+v, want reward 200", got)
	}
}

func TestConcurrentVerifyCreditsOnce(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{result: CheckSubscribed})
	ctx := context.Background()

	const attempts = 32
	results := make(chan VerifyResult, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engine.Verify(ctx, 123, "welcome_follow")
			if err != nil {
				t.Errorf("Verify() error = %v", err)
				return
			}
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for got := range results {
		if got.RewardCents > 0 {
			granted++
		}
	}
	if granted != 1 {
		t.Errorf("granted %d times, want exactly 1", granted)
	}
	if balance, _ := store.Balance(ctx, 123); balance != 50 {
		t.Errorf("balance = %d, want 50", balance)
	}
}

func TestConcurrentClaimCreditsOnce(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{})
	ctx := context.Background()
	store.Set(ctx, 123, "watch_5", StatusReadyToClaim)

	const attempts = 16
	results := make(chan VerifyResult, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engine.Claim(ctx, 123, "watch_5")
			if err != nil {
				t.Errorf("Claim() error = %v", err)
				return
			}
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for got := range results {
		if got.RewardCents > 0 {
			granted++
		}
	}
	if granted != 1 {
		t.Errorf("granted %d times, want exactly 1", granted)
	}
	if balance, _ := store.Balance(ctx, 123); balance != 75 {
		t.Errorf("balance = %d, want 75", balance)
	}
}

func TestMarkVisited(t *testing.T) {
	tests := []struct {
		name       string
		current    Status
		wantStatus Status
	}{
		{name: "new quest becomes visited", current: "", wantStatus: StatusVisited},
		{name: "visited stays visited", current: StatusVisited, wantStatus: StatusVisited},
		{name: "ready_to_claim is not downgraded", current: StatusReadyToClaim, wantStatus: StatusReadyToClaim},
		{name: "completed is terminal", current: StatusCompleted, wantStatus: StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store := testEngine(t, &fakeOracle{})
			ctx := context.Background()
			if tt.current != "" {
				store.Set(ctx, 123, "welcome_follow", tt.current)
			}

			if err := engine.MarkVisited(ctx, 123, "welcome_follow"); err != nil {
				t.Fatalf("MarkVisited() error = %v", err)
			}

			statuses, _ := store.GetAll(ctx, 123)
			if statuses["welcome_follow"] != tt.wantStatus {
				t.Errorf("status = %q, want %q", statuses["welcome_follow"], tt.wantStatus)
			}
		})
	}
}

func TestStatuses(t *testing.T) {
	engine, store := testEngine(t, &fakeOracle{})
	ctx := context.Background()

	store.CreditIfNotCompleted(ctx, 123, "welcome_follow", 50)
	store.Set(ctx, 123, "watch_5", StatusReadyToClaim)
	store.Increment(ctx, 123, "videos_watched", 7)

	got, err := engine.Statuses(ctx, 123)
	if err != nil {
		t.Fatalf("Statuses() error = %v", err)
	}

	want := StatusReport{
		BalanceCents: 50,
		Quests: map[string]Status{
			"welcome_follow": StatusCompleted,
			"watch_5":        StatusReadyToClaim,
		},
		Counters: map[string]int64{"videos_watched": 7},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Statuses() = %+v, want %+v", got, want)
	}
}

func TestInputValidation(t *testing.T) {
	engine, _ := testEngine(t, &fakeOracle{})
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"verify zero user", func() error { _, err := engine.Verify(ctx, 0, "welcome_follow"); return err }},
		{"verify empty quest", func() error { _, err := engine.Verify(ctx, 123, ""); return err }},
		{"claim non-milestone", func() error { _, err := engine.Claim(ctx, 123, "welcome_follow"); return err }},
		{"visit negative user", func() error { return engine.MarkVisited(ctx, -1, "welcome_follow") }},
		{"activity zero delta", func() error { _, err := engine.RecordActivity(ctx, 123, "videos_watched", 0); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}

	if _, err := engine.Verify(ctx, 123, "no_such_quest"); !errors.Is(err, ErrUnknownQuest) {
		t.Errorf("error = %v, want ErrUnknownQuest", err)
	}
}
