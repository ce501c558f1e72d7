package aggregate

import (
	"sort"
	"time"

	"github.com/wstszx/LicStats/internal/license"
)

// Aggregate merges the features of all snapshots in a window.
//
// Snapshots are deduplicated by ID and folded in capture order, so the result
// does not depend on the order of the input. interval is the spacing between
// scheduled collections and is credited once per snapshot in which a feature
// was in use.
func Aggregate(snapshots []license.Snapshot, interval time.Duration) []license.AggregatedFeature {
	ordered := chronological(snapshots)
	if len(ordered) == 0 {
		return []license.AggregatedFeature{}
	}

	minutes := int(interval / time.Minute)
	order := make([]string, 0)
	merged := make(map[string]*accumulator)

	for _, snap := range ordered {
		for _, f := range snap.Features {
			acc, ok := merged[f.Name]
			if !ok {
				acc = newAccumulator(f.Name)
				merged[f.Name] = acc
				order = append(order, f.Name)
			}
			acc.add(f, minutes)
		}
	}

	latest := ordered[len(ordered)-1]
	current := make(map[string]int, len(latest.Features))
	for _, f := range latest.Features {
		current[f.Name] = f.InUse
	}

	out := make([]license.AggregatedFeature, 0, len(order))
	for _, name := range order {
		agg := merged[name].result()
		agg.CurrentInUse = current[name]
		agg.Available = agg.TotalLicenses - agg.CurrentInUse
		out = append(out, agg)
	}
	return out
}

// chronological returns the snapshots sorted by capture time with duplicate IDs removed.
func chronological(snapshots []license.Snapshot) []license.Snapshot {
	seen := make(map[string]struct{}, len(snapshots))
	out := make([]license.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].CapturedAt.Before(out[j].CapturedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type accumulator struct {
	feature license.AggregatedFeature
	seen    map[license.UserKey]struct{}
}

func newAccumulator(name string) *accumulator {
	return &accumulator{
		feature: license.AggregatedFeature{Name: name, Users: []license.User{}},
		seen:    make(map[license.UserKey]struct{}),
	}
}

func (a *accumulator) add(f license.Feature, intervalMinutes int) {
	agg := &a.feature
	agg.SnapshotCount++
	if f.TotalLicenses > agg.TotalLicenses {
		agg.TotalLicenses = f.TotalLicenses
	}
	if f.InUse > agg.PeakUsage {
		agg.PeakUsage = f.InUse
	}
	if f.InUse > 0 {
		agg.TotalDurationMinutes += intervalMinutes
		agg.TotalUsageMinutes += intervalMinutes * f.InUse
	}
	for _, u := range f.Users {
		key := u.Key()
		if _, ok := a.seen[key]; ok {
			continue
		}
		a.seen[key] = struct{}{}
		agg.Users = append(agg.Users, u)
	}
}

func (a *accumulator) result() license.AggregatedFeature {
	return a.feature
}
