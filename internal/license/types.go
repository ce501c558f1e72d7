package license

import (
	"time"
)

// User is one checkout of a feature by one session.
type User struct {
	Username   string `json:"user"`
	Hostname   string `json:"host"`
	Connection string `json:"connection"`
	StartTime  string `json:"start_time"`
	Linger     *int   `json:"linger,omitempty"` // minutes; only reported by some dialects
	Version    string `json:"version,omitempty"`
	Details    string `json:"details"`
}

// Key returns the identity used to deduplicate users across snapshots.
func (u User) Key() UserKey {
	return UserKey{Username: u.Username, Hostname: u.Hostname}
}

// UserKey identifies a user session by username and hostname.
type UserKey struct {
	Username string
	Hostname string
}

// Feature is one license-controlled capability in one snapshot.
type Feature struct {
	Name          string `json:"feature"`
	TotalLicenses int    `json:"total"`
	InUse         int    `json:"in_use"`
	Available     int    `json:"available"`
	Users         []User `json:"users"`
	Dialect       string `json:"dialect,omitempty"`
	InUseReported bool   `json:"-"`
}

// Snapshot is the parsed result of one point-in-time status capture.
type Snapshot struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"timestamp"`
	Features   []Feature `json:"licenses"`
}

// AggregatedFeature merges a feature with the same name across the snapshots of a window.
type AggregatedFeature struct {
	Name                 string `json:"feature"`
	TotalLicenses        int    `json:"total"`
	PeakUsage            int    `json:"peak_usage"`
	CurrentInUse         int    `json:"current_in_use"`
	Available            int    `json:"available"`
	TotalDurationMinutes int    `json:"total_duration_minutes"`
	TotalUsageMinutes    int    `json:"total_usage_minutes"`
	SnapshotCount        int    `json:"snapshot_count"`
	Users                []User `json:"users"`
}
