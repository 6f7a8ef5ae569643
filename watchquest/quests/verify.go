package quests

import (
	"context"
	"fmt"
	"log/slog"
)

// verifier is the per-kind validation strategy. The set is closed: one
// implementation per Kind, selected by verifierFor.
type verifier interface {
	verify(ctx context.Context, e *Engine, userID int64, def Definition, current Status) (VerifyResult, error)
}

func verifierFor(kind Kind) verifier {
	switch kind {
	case KindFollow:
		return followVerifier{}
	case KindMilestone:
		return milestoneVerifier{}
	default:
		return externalVerifier{}
	}
}

// followVerifier asks the subscription oracle and completes the quest
// directly on a confirmed membership. A confirmed non-membership resets a
// visited quest back to none; an unverifiable answer changes nothing.
type followVerifier struct{}

func (followVerifier) verify(ctx context.Context, e *Engine, userID int64, def Definition, current Status) (VerifyResult, error) {
	result, err := e.oracle.CheckMembership(ctx, userID, def.Channel)
	if err != nil {
		slog.Warn("Subscription check failed",
			slog.Int64("user_id", userID),
			slog.String("channel", def.Channel),
			slog.Any("error", err))
		result = CheckUnverifiable
	}

	switch result {
	case CheckSubscribed:
		return e.grant(ctx, userID, def)
	case CheckNotSubscribed:
		if current == StatusVisited {
			if err := e.statuses.Set(ctx, userID, def.ID, StatusNone); err != nil {
				return VerifyResult{}, fmt.Errorf("failed to reset quest status: %w", err)
			}
		}
		return VerifyResult{}, nil
	default:
		return VerifyResult{Unverifiable: true}, nil
	}
}

// milestoneVerifier consumes the readiness produced by RecordActivity. The
// counter is not re-read here: milestone rewards are only claimable through
// an explicit user action after the tracker promoted the quest.
type milestoneVerifier struct{}

func (milestoneVerifier) verify(ctx context.Context, e *Engine, userID int64, def Definition, current Status) (VerifyResult, error) {
	if current != StatusReadyToClaim {
		return VerifyResult{}, nil
	}
	return e.grant(ctx, userID, def)
}

// externalVerifier completes a CPA-style quest once a conversion marker has
// been recorded for it by the postback intake.
type externalVerifier struct{}

func (externalVerifier) verify(ctx context.Context, e *Engine, userID int64, def Definition, current Status) (VerifyResult, error) {
	marker, err := e.counters.Get(ctx, userID, OfferCounterKey(def.ID))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to get conversion marker: %w", err)
	}
	if marker < 1 {
		return VerifyResult{}, nil
	}
	return e.grant(ctx, userID, def)
}
