package aggregate

import (
	"time"

	"github.com/wstszx/LicStats/internal/license"
	"github.com/wstszx/LicStats/internal/stats"
)

// Point is the coarse usage of one snapshot, used for trend charts.
type Point struct {
	Timestamp          time.Time `json:"timestamp"`
	Snapshot           string    `json:"snapshot"`
	TotalLicensesInUse int       `json:"total_licenses_in_use"`
	TotalUsers         int       `json:"total_users"`
}

// History returns one point per snapshot in capture order. Snapshots are not
// merged; users are counted independently within each snapshot.
func History(snapshots []license.Snapshot) []Point {
	ordered := chronological(snapshots)
	points := make([]Point, 0, len(ordered))
	for _, snap := range ordered {
		inUse := 0
		for _, f := range snap.Features {
			inUse += f.InUse
		}
		points = append(points, Point{
			Timestamp:          snap.CapturedAt,
			Snapshot:           snap.ID,
			TotalLicensesInUse: inUse,
			TotalUsers:         stats.CountUsers(snap.Features),
		})
	}
	return points
}
