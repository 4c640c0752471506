package activity

import (
	"math/big"
	"reflect"
	"testing"
)

func TestListenFlagWriteOnce(t *testing.T) {
	tracker := New()

	if tracker.HasListened(0, "alice") {
		t.Fatal("fresh pair should not be marked")
	}
	tracker.MarkListened(0, "alice")
	if !tracker.HasListened(0, "alice") {
		t.Fatal("mark not recorded")
	}
	tracker.MarkListened(0, "alice")
	if !tracker.HasListened(0, "alice") {
		t.Fatal("flag must stay set")
	}

	if tracker.HasListened(1, "alice") {
		t.Fatal("flag leaked across slots")
	}
	if tracker.HasListened(0, "bob") {
		t.Fatal("flag leaked across accounts")
	}
}

func TestRatedFlagIndependentOfListen(t *testing.T) {
	tracker := New()
	tracker.MarkRated(3, "alice")
	if !tracker.HasRated(3, "alice") {
		t.Fatal("rated flag not recorded")
	}
	if tracker.HasListened(3, "alice") {
		t.Fatal("rated flag must not imply listened")
	}
}

func TestHistoryKeepsDuplicates(t *testing.T) {
	tracker := New()
	tracker.AppendHistory("alice", "A")
	tracker.AppendHistory("alice", "A")
	tracker.AppendHistory("alice", "B")

	history := tracker.History("alice")
	if !reflect.DeepEqual(history, []string{"A", "A", "B"}) {
		t.Fatalf("unexpected history: %v", history)
	}
	if tracker.History("bob") != nil {
		t.Fatal("unknown account should have no history")
	}
}

func TestHistorySnapshotIsCopy(t *testing.T) {
	tracker := New()
	tracker.AppendHistory("alice", "A")

	history := tracker.History("alice")
	history[0] = "tampered"
	if got := tracker.History("alice")[0]; got != "A" {
		t.Fatalf("internal history mutated: %s", got)
	}
}

func TestAddPurchasedAccumulates(t *testing.T) {
	tracker := New()
	tracker.AddPurchased("alice", big.NewInt(3))
	tracker.AddPurchased("alice", big.NewInt(4))

	profile := tracker.Profile("alice")
	if profile.CreditsPurchased.Int64() != 7 {
		t.Fatalf("unexpected total: %v", profile.CreditsPurchased)
	}

	empty := tracker.Profile("ghost")
	if empty.CreditsPurchased.Sign() != 0 || len(empty.ListenHistory) != 0 {
		t.Fatalf("unknown account should be empty: %+v", empty)
	}
}
