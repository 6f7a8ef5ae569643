package quests

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewRegistryValidation(t *testing.T) {
	follow := Definition{ID: "f", Kind: KindFollow, RewardCents: 50, Channel: "@chan"}

	tests := []struct {
		name    string
		defs    []Definition
		wantErr bool
	}{
		{
			name: "valid mixed config",
			defs: []Definition{
				follow,
				{ID: "m", Kind: KindMilestone, RewardCents: 75, Goal: 5, CounterKey: "videos_watched"},
				{ID: "x", Kind: KindExternal, RewardCents: 0},
			},
		},
		{
			name:    "duplicate id",
			defs:    []Definition{follow, follow},
			wantErr: true,
		},
		{
			name:    "empty id",
			defs:    []Definition{{Kind: KindFollow, Channel: "@chan"}},
			wantErr: true,
		},
		{
			name:    "negative reward",
			defs:    []Definition{{ID: "f", Kind: KindFollow, RewardCents: -1, Channel: "@chan"}},
			wantErr: true,
		},
		{
			name:    "follow without channel",
			defs:    []Definition{{ID: "f", Kind: KindFollow, RewardCents: 50}},
			wantErr: true,
		},
		{
			name:    "milestone with zero goal",
			defs:    []Definition{{ID: "m", Kind: KindMilestone, RewardCents: 75, CounterKey: "videos_watched"}},
			wantErr: true,
		},
		{
			name:    "milestone without counter key",
			defs:    []Definition{{ID: "m", Kind: KindMilestone, RewardCents: 75, Goal: 5}},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			defs:    []Definition{{ID: "q", Kind: "raffle", RewardCents: 10}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRegistry() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry([]Definition{
		{ID: "b", Kind: KindExternal, RewardCents: 1},
		{ID: "a", Kind: KindMilestone, RewardCents: 2, Goal: 3, CounterKey: "videos_watched"},
		{ID: "c", Kind: KindMilestone, RewardCents: 3, Goal: 10, CounterKey: "videos_watched"},
		{ID: "d", Kind: KindMilestone, RewardCents: 4, Goal: 1, CounterKey: "links_clicked"},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if _, err := reg.Get("a"); err != nil {
		t.Errorf("Get(a) error = %v", err)
	}
	if _, err := reg.Get("missing"); !errors.Is(err, ErrUnknownQuest) {
		t.Errorf("Get(missing) error = %v, want ErrUnknownQuest", err)
	}

	// List preserves configuration order.
	var ids []string
	for _, def := range reg.List() {
		ids = append(ids, def.ID)
	}
	if want := []string{"b", "a", "c", "d"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("List() ids = %v, want %v", ids, want)
	}

	var watching []string
	for _, def := range reg.Milestones("videos_watched") {
		watching = append(watching, def.ID)
	}
	if want := []string{"a", "c"}; !reflect.DeepEqual(watching, want) {
		t.Errorf("Milestones(videos_watched) = %v, want %v", watching, want)
	}

	if got, want := reg.CounterKeys(), []string{"videos_watched", "links_clicked"}; !reflect.DeepEqual(got, want) {
		t.Errorf("CounterKeys() = %v, want %v", got, want)
	}
}
