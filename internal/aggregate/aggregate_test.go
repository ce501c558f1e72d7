package aggregate

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/wstszx/LicStats/internal/license"
)

var base = time.Date(2024, 10, 14, 9, 0, 0, 0, time.UTC)

func snap(id string, offset time.Duration, features ...license.Feature) license.Snapshot {
	return license.Snapshot{ID: id, CapturedAt: base.Add(offset), Features: features}
}

func feat(name string, total, inUse int, users ...license.User) license.Feature {
	if users == nil {
		users = []license.User{}
	}
	return license.Feature{Name: name, TotalLicenses: total, InUse: inUse, Available: total - inUse, Users: users}
}

func usr(name, host, conn string) license.User {
	return license.User{Username: name, Hostname: host, Connection: conn}
}

func find(t *testing.T, features []license.AggregatedFeature, name string) license.AggregatedFeature {
	t.Helper()
	for _, f := range features {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("Feature %s not found in %+v", name, features)
	return license.AggregatedFeature{}
}

func TestAggregate_PeakAndCurrent(t *testing.T) {
	snapshots := []license.Snapshot{
		snap("a.txt", 0, feat("X", 10, 2)),
		snap("b.txt", time.Minute, feat("X", 10, 5)),
	}

	x := find(t, Aggregate(snapshots, time.Minute), "X")
	if x.PeakUsage != 5 || x.CurrentInUse != 5 {
		t.Errorf("Expected peak=5 current=5, got peak=%d current=%d", x.PeakUsage, x.CurrentInUse)
	}
	if x.Available != 5 {
		t.Errorf("Expected available 5, got %d", x.Available)
	}
}

func TestAggregate_CurrentComesFromLatestOnly(t *testing.T) {
	snapshots := []license.Snapshot{
		snap("1.txt", 0, feat("X", 8, 6), feat("Y", 4, 4)),
		snap("2.txt", time.Minute, feat("X", 12, 1), feat("Y", 4, 2)),
		snap("3.txt", 2*time.Minute, feat("X", 10, 3)),
	}

	result := Aggregate(snapshots, time.Minute)
	x := find(t, result, "X")
	if x.PeakUsage != 6 || x.CurrentInUse != 3 {
		t.Errorf("Expected peak=6 current=3, got peak=%d current=%d", x.PeakUsage, x.CurrentInUse)
	}
	if x.TotalLicenses != 12 {
		t.Errorf("Expected max total 12, got %d", x.TotalLicenses)
	}
	if x.Available != 9 {
		t.Errorf("Expected available 12-3=9, got %d", x.Available)
	}
	if x.SnapshotCount != 3 {
		t.Errorf("Expected snapshot count 3, got %d", x.SnapshotCount)
	}

	y := find(t, result, "Y")
	if y.CurrentInUse != 0 || y.Available != 4 {
		t.Errorf("Expected feature absent from latest to report current=0 available=4, got %+v", y)
	}
}

func TestAggregate_Durations(t *testing.T) {
	snapshots := []license.Snapshot{
		snap("1.txt", 0, feat("X", 5, 2)),
		snap("2.txt", 5*time.Minute, feat("X", 5, 0)),
		snap("3.txt", 10*time.Minute, feat("X", 5, 3)),
	}

	x := find(t, Aggregate(snapshots, 5*time.Minute), "X")
	if x.TotalDurationMinutes != 10 {
		t.Errorf("Expected active duration 10 minutes, got %d", x.TotalDurationMinutes)
	}
	if x.TotalUsageMinutes != 25 {
		t.Errorf("Expected seat-minutes 25, got %d", x.TotalUsageMinutes)
	}
}

func TestAggregate_SingleSnapshotIsIdentity(t *testing.T) {
	snapshots := []license.Snapshot{
		snap("only.txt", 0, feat("busy", 4, 3, usr("a", "h1", "c1")), feat("idle", 2, 0)),
	}

	result := Aggregate(snapshots, time.Minute)
	busy := find(t, result, "busy")
	if busy.PeakUsage != 3 || busy.CurrentInUse != 3 || busy.Available != 1 {
		t.Errorf("Unexpected busy aggregate: %+v", busy)
	}
	if busy.TotalDurationMinutes != 1 {
		t.Errorf("Expected duration of one interval, got %d", busy.TotalDurationMinutes)
	}
	idle := find(t, result, "idle")
	if idle.TotalDurationMinutes != 0 || idle.PeakUsage != 0 {
		t.Errorf("Unexpected idle aggregate: %+v", idle)
	}
}

func TestAggregate_UserUnionFirstSeenWins(t *testing.T) {
	snapshots := []license.Snapshot{
		snap("2.txt", time.Minute, feat("X", 5, 2, usr("alice", "h1", "late"), usr("bob", "h2", "b"))),
		snap("1.txt", 0, feat("X", 5, 2, usr("alice", "h1", "early"), usr("alice", "h9", "other"))),
	}

	x := find(t, Aggregate(snapshots, time.Minute), "X")
	if len(x.Users) != 3 {
		t.Fatalf("Expected 3 distinct (user, host) pairs, got %d: %+v", len(x.Users), x.Users)
	}
	if x.Users[0].Connection != "early" {
		t.Errorf("Expected record from the earliest snapshot to win, got %q", x.Users[0].Connection)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	snapshots := []license.Snapshot{
		snap("1.txt", 0, feat("X", 5, 1, usr("a", "h1", "1")), feat("Y", 3, 0)),
		snap("2.txt", time.Minute, feat("Y", 3, 2, usr("b", "h2", "2"), usr("a", "h1", "2"))),
		snap("3.txt", 2*time.Minute, feat("X", 6, 4, usr("a", "h1", "3"), usr("c", "h3", "3"))),
		snap("4.txt", 3*time.Minute, feat("Z", 1, 1, usr("d", "h4", "4")), feat("X", 6, 2)),
	}

	want := Aggregate(snapshots, time.Minute)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]license.Snapshot(nil), snapshots...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Aggregate(shuffled, time.Minute)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Aggregate() depends on input order (-want +got):\n%s", diff)
		}
	}
}

func TestAggregate_DuplicateSnapshotsAreIdempotent(t *testing.T) {
	one := snap("1.txt", 0, feat("X", 5, 2, usr("a", "h1", "c"), usr("b", "h2", "c")))
	two := snap("2.txt", time.Minute, feat("X", 5, 1, usr("a", "h1", "c")))

	want := Aggregate([]license.Snapshot{one, two}, time.Minute)
	got := Aggregate([]license.Snapshot{one, two, one, two}, time.Minute)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Aggregating duplicates changed the result (-want +got):\n%s", diff)
	}
}

func TestAggregate_Empty(t *testing.T) {
	result := Aggregate(nil, time.Minute)
	if result == nil || len(result) != 0 {
		t.Errorf("Expected empty non-nil result, got %#v", result)
	}
}

func TestHistory(t *testing.T) {
	snapshots := []license.Snapshot{
		snap("2.txt", time.Minute, feat("X", 5, 3, usr("a", "h1", ""), usr("a", "h2", "")), feat("Y", 2, 1, usr("b", "h3", ""))),
		snap("1.txt", 0, feat("X", 5, 1, usr("a", "h1", ""))),
		snap("1.txt", 0, feat("X", 5, 1, usr("a", "h1", ""))),
	}

	points := History(snapshots)
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
	if points[0].Snapshot != "1.txt" || !points[0].Timestamp.Equal(base) {
		t.Errorf("Expected ascending order, got %+v", points)
	}
	if points[1].TotalLicensesInUse != 4 || points[1].TotalUsers != 2 {
		t.Errorf("Expected in_use=4 users=2, got %+v", points[1])
	}
}
