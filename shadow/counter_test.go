package shadow_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stevemurr/dashstate/schema"
	"github.com/stevemurr/dashstate/shadow"
)

func TestCounterDefaultsToStart(t *testing.T) {
	f := newFixture(t, nil)
	if got := f.store.Counter("nextUserId", 1); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	for _, slot := range []string{"nextUserId", "nextUserId_backup"} {
		if text, _, _ := f.slots.Get(slot); text != "1" {
			t.Fatalf("%s = %q, want plain text 1", slot, text)
		}
	}
}

func TestNextIsMonotonic(t *testing.T) {
	f := newFixture(t, nil)
	for want := int64(1); want <= 3; want++ {
		if got := f.store.Next("nextUserId", 1); got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	if text, _, _ := f.slots.Get("nextUserId"); text != "4" {
		t.Fatalf("expected stored 4, got %q", text)
	}
}

func TestCounterRecoversFromBackup(t *testing.T) {
	f := newFixture(t, nil)
	f.set(t, "nextUserId", "-3")
	f.set(t, "nextUserId_backup", "12")

	if got := f.store.Next("nextUserId", 1); got != 12 {
		t.Fatalf("expected 12 from backup, got %d", got)
	}
	if f.counts.recovered[shadow.PrimaryInvalid] != 1 {
		t.Fatalf("expected a recovery, got %v", f.counts.recovered)
	}
}

func TestCounterRejectsFractions(t *testing.T) {
	f := newFixture(t, nil)
	f.set(t, "nextThreadId", "2.5")
	if got := f.store.Counter("nextThreadId", 1); got != 1 {
		t.Fatalf("expected start value, got %d", got)
	}
}

type update struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Summary string `json:"summary"`
}

var updatesCollection = shadow.Collection[[]update]{
	Key: "updates",
	Schema: schema.Records(
		schema.Req("id", schema.String),
		schema.Req("version", schema.String),
		schema.Req("summary", schema.String),
	),
	Default: func() []update { return []update{} },
}

func TestTypedLoadAndSave(t *testing.T) {
	f := newFixture(t, nil)

	if got := shadow.Load(f.store, updatesCollection); len(got) != 0 {
		t.Fatalf("expected empty default, got %v", got)
	}

	want := []update{{ID: "u1", Version: "v1", Summary: "fix"}}
	shadow.Save(f.store, updatesCollection, want)

	got := shadow.Load(f.store, updatesCollection)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestTypedLoadRecovers(t *testing.T) {
	f := newFixture(t, nil)
	f.set(t, "updates", `[{"id":"u1"}]`)
	f.set(t, "updates_backup", validUpdates)

	got := shadow.Load(f.store, updatesCollection)
	want := []update{{ID: "u1", Version: "v1", Summary: "fix"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}
