package stats

import (
	"math"
	"sort"

	"github.com/wstszx/LicStats/internal/license"
)

// Ranking names the key a module report is sorted by.
type Ranking string

const (
	// RankByUsageRate is used for single-snapshot views.
	RankByUsageRate Ranking = "usage_rate"

	// RankByPeakUsage is used for windowed views.
	RankByPeakUsage Ranking = "peak_usage"
)

// ModuleUser is one checkout listed under a module.
type ModuleUser struct {
	Username   string `json:"username"`
	Host       string `json:"host"`
	StartTime  string `json:"start_time"`
	Connection string `json:"connection"`
	Linger     *int   `json:"linger,omitempty"`
}

// ModuleSummary describes one feature with active usage.
type ModuleSummary struct {
	Feature   string       `json:"feature"`
	Total     int          `json:"total"`
	InUse     int          `json:"in_use"`
	PeakUsage int          `json:"peak_usage"`
	Available int          `json:"available"`
	UsageRate float64      `json:"usage_rate"`
	Users     []ModuleUser `json:"users"`
}

// ModuleReport is a ranked list of module summaries.
type ModuleReport struct {
	RankedBy Ranking         `json:"ranked_by"`
	Modules  []ModuleSummary `json:"modules"`
}

// ModuleStatistics summarizes features with InUse > 0 from a single snapshot,
// ranked by usage rate descending.
func ModuleStatistics(features []license.Feature) ModuleReport {
	modules := make([]ModuleSummary, 0)
	for _, f := range features {
		if f.InUse <= 0 {
			continue
		}
		modules = append(modules, ModuleSummary{
			Feature:   f.Name,
			Total:     f.TotalLicenses,
			InUse:     f.InUse,
			PeakUsage: f.InUse,
			Available: f.Available,
			UsageRate: UsageRate(f.InUse, f.TotalLicenses),
			Users:     moduleUsers(f.Users),
		})
	}

	sort.SliceStable(modules, func(i, j int) bool {
		a, b := modules[i], modules[j]
		if a.UsageRate != b.UsageRate {
			return a.UsageRate > b.UsageRate
		}
		if a.InUse != b.InUse {
			return a.InUse > b.InUse
		}
		return a.Feature < b.Feature
	})

	return ModuleReport{RankedBy: RankByUsageRate, Modules: modules}
}

// WindowModuleStatistics summarizes aggregated features with PeakUsage > 0,
// ranked by peak usage descending. The usage rate is taken at the peak.
func WindowModuleStatistics(features []license.AggregatedFeature) ModuleReport {
	modules := make([]ModuleSummary, 0)
	for _, f := range features {
		if f.PeakUsage <= 0 {
			continue
		}
		modules = append(modules, ModuleSummary{
			Feature:   f.Name,
			Total:     f.TotalLicenses,
			InUse:     f.CurrentInUse,
			PeakUsage: f.PeakUsage,
			Available: f.Available,
			UsageRate: UsageRate(f.PeakUsage, f.TotalLicenses),
			Users:     moduleUsers(f.Users),
		})
	}

	sort.SliceStable(modules, func(i, j int) bool {
		a, b := modules[i], modules[j]
		if a.PeakUsage != b.PeakUsage {
			return a.PeakUsage > b.PeakUsage
		}
		if a.UsageRate != b.UsageRate {
			return a.UsageRate > b.UsageRate
		}
		return a.Feature < b.Feature
	})

	return ModuleReport{RankedBy: RankByPeakUsage, Modules: modules}
}

// UsageRate returns used/total as a percentage rounded to two decimals,
// or 0 when total is not positive.
func UsageRate(used, total int) float64 {
	if total <= 0 {
		return 0
	}
	rate := float64(used) / float64(total) * 100
	return math.Round(rate*100) / 100
}

func moduleUsers(users []license.User) []ModuleUser {
	out := make([]ModuleUser, 0, len(users))
	for _, u := range users {
		out = append(out, ModuleUser{
			Username:   u.Username,
			Host:       u.Hostname,
			StartTime:  orUnknown(u.StartTime),
			Connection: orUnknown(u.Connection),
			Linger:     u.Linger,
		})
	}
	return out
}
