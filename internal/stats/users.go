package stats

import (
	"github.com/wstszx/LicStats/internal/license"
)

// Unknown is reported for start times and connections the source did not provide.
const Unknown = "Unknown"

// Checkout is one license held by a user.
type Checkout struct {
	Feature    string `json:"feature"`
	Host       string `json:"host"`
	StartTime  string `json:"start_time"`
	Connection string `json:"connection"`
}

// UserSummary rolls up every checkout of one username.
type UserSummary struct {
	Username      string     `json:"username"`
	TotalLicenses int        `json:"total_licenses"`
	Licenses      []Checkout `json:"licenses"`
	Hosts         []string   `json:"hosts"`
	UniqueHosts   int        `json:"unique_hosts"`
	FirstSeen     string     `json:"first_seen"`
	Connections   []string   `json:"connections"`
}

// featureUsers is the part of a feature record the user rollup needs.
type featureUsers struct {
	name  string
	users []license.User
}

// UserStatistics returns one summary per distinct username, in order of first appearance.
// FirstSeen is the start time of the user's first checkout in feature order; start
// times are opaque strings and are never compared chronologically.
func UserStatistics(features []license.Feature) []UserSummary {
	items := make([]featureUsers, len(features))
	for i, f := range features {
		items[i] = featureUsers{name: f.Name, users: f.Users}
	}
	return rollupUsers(items)
}

// WindowUserStatistics is UserStatistics over the deduplicated users of a window.
func WindowUserStatistics(features []license.AggregatedFeature) []UserSummary {
	items := make([]featureUsers, len(features))
	for i, f := range features {
		items[i] = featureUsers{name: f.Name, users: f.Users}
	}
	return rollupUsers(items)
}

// CountUsers returns the number of distinct usernames across features.
func CountUsers(features []license.Feature) int {
	seen := make(map[string]struct{})
	for _, f := range features {
		for _, u := range f.Users {
			seen[u.Username] = struct{}{}
		}
	}
	return len(seen)
}

type userAccumulator struct {
	summary *UserSummary
	hosts   *orderedSet
}

func rollupUsers(items []featureUsers) []UserSummary {
	order := make([]string, 0)
	byName := make(map[string]*userAccumulator)

	for _, item := range items {
		for _, u := range item.users {
			acc, ok := byName[u.Username]
			if !ok {
				acc = &userAccumulator{
					summary: &UserSummary{
						Username:    u.Username,
						Licenses:    []Checkout{},
						Connections: []string{},
						FirstSeen:   orUnknown(u.StartTime),
					},
					hosts: newOrderedSet(),
				}
				byName[u.Username] = acc
				order = append(order, u.Username)
			}

			s := acc.summary
			s.TotalLicenses++
			s.Licenses = append(s.Licenses, Checkout{
				Feature:    item.name,
				Host:       u.Hostname,
				StartTime:  orUnknown(u.StartTime),
				Connection: orUnknown(u.Connection),
			})
			acc.hosts.add(u.Hostname)
			if u.Connection != "" {
				s.Connections = append(s.Connections, u.Connection)
			}
		}
	}

	summaries := make([]UserSummary, 0, len(order))
	for _, name := range order {
		acc := byName[name]
		acc.summary.Hosts = acc.hosts.values()
		acc.summary.UniqueHosts = acc.hosts.len()
		summaries = append(summaries, *acc.summary)
	}
	return summaries
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

// orderedSet is a string set that remembers insertion order.
type orderedSet struct {
	index map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) len() int {
	return len(s.items)
}

func (s *orderedSet) values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
