package quests

import "fmt"

// Kind selects the verification strategy for a quest.
type Kind string

const (
	KindFollow    Kind = "follow"
	KindMilestone Kind = "milestone"
	KindExternal  Kind = "external"
)

// Status is the per (user, quest) lifecycle state. StatusNone is the implicit
// initial state of a pair that has no row yet.
type Status string

const (
	StatusNone         Status = "none"
	StatusVisited      Status = "visited"
	StatusReadyToClaim Status = "ready_to_claim"
	StatusCompleted    Status = "completed"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Definition is an immutable quest loaded from configuration at startup.
type Definition struct {
	ID          string
	Kind        Kind
	RewardCents int64
	Title       string
	Link        string

	// Channel is the channel identifier checked by follow quests, e.g. "@name".
	Channel string

	// Goal and CounterKey drive milestone quests: the quest becomes claimable
	// once the user's counter under CounterKey reaches Goal.
	Goal       int64
	CounterKey string
}

// Validate checks the invariants a definition must hold at registry load.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("quest id must not be empty")
	}
	if d.RewardCents < 0 {
		return fmt.Errorf("quest %q: reward must not be negative", d.ID)
	}
	switch d.Kind {
	case KindFollow:
		if d.Channel == "" {
			return fmt.Errorf("quest %q: follow quest requires a channel", d.ID)
		}
	case KindMilestone:
		if d.Goal < 1 {
			return fmt.Errorf("quest %q: milestone goal must be at least 1", d.ID)
		}
		if d.CounterKey == "" {
			return fmt.Errorf("quest %q: milestone quest requires a counter key", d.ID)
		}
	case KindExternal:
	default:
		return fmt.Errorf("quest %q: unknown kind %q", d.ID, d.Kind)
	}
	return nil
}

// OfferCounterKey is the counter under which an external quest's conversion
// marker is recorded by the postback intake.
func OfferCounterKey(questID string) string {
	return "offer:" + questID
}
