package metrics

import "github.com/wstszx/LicStats/internal/license"

// ObserveSnapshot replaces the per-feature gauges with the values of snap.
// Features that disappeared from the dump are removed from the series.
func ObserveSnapshot(snap license.Snapshot, activeUsers int) {
	LicensesIssued.Reset()
	LicensesInUse.Reset()
	for _, f := range snap.Features {
		LicensesIssued.WithLabelValues(f.Name).Set(float64(f.TotalLicenses))
		LicensesInUse.WithLabelValues(f.Name).Set(float64(f.InUse))
	}
	ActiveUsers.Set(float64(activeUsers))
}
