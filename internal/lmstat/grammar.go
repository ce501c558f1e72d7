package lmstat

import (
	"fmt"
	"regexp"
)

// Grammar describes one lmstat output dialect.
//
// Header must capture the named group "feature" and may capture "issued" and
// "inuse". Issued, when set, matches a detail line inside a block that reports
// the issued count for headers that did not carry it. User must capture "user"
// and "host" and may capture "connection", "start", "linger" and "version".
type Grammar struct {
	Name   string
	Header *regexp.Regexp
	Issued *regexp.Regexp
	User   *regexp.Regexp
}

const (
	// DialectFlexLM is the classic "Users of <feature>: (Total of ...)" layout.
	DialectFlexLM = "flexlm"

	// DialectQuoted is the layout that quotes feature names and omits linger.
	DialectQuoted = "flexlm-quoted"
)

var (
	flexlmHeader = regexp.MustCompile(
		`^Users of (?P<feature>[^:]+):\s+\(Total of (?P<issued>\d+) licenses? issued;\s+Total of (?P<inuse>\d+) licenses? in use\)`)

	// jdoe ws01 ws01 (v2024.12) (HQCNDB/29000 1234), start Mon 10/14 9:30 (linger: 7200)
	flexlmUser = regexp.MustCompile(
		`^(?P<user>[^\s"]+)\s+(?P<host>\S+)\s+.*?\((?P<connection>[^)]+)\),\s*start\s+(?P<start>.+?)\s*\(linger:\s*(?P<linger>\d+)\)`)

	quotedHeader = regexp.MustCompile(
		`^"(?P<feature>[^"]+)"\s+licenses?\s+issued:?\s*(?P<issued>\d+)?.*?\blicenses?\s+in\s+use:\s*(?P<inuse>\d+)?`)

	quotedIssued = regexp.MustCompile(
		`^(?:Total of\s+)?(?P<issued>\d+)\s+licenses?\s+issued\b`)

	// jdoe ws01 /dev/tty (v11.2) (lic01/27000 305), start Tue 3/4 14:02
	quotedUser = regexp.MustCompile(
		`^(?P<user>[^\s"]+)\s+(?P<host>\S+)\s+.*?\(v(?P<version>[^)]+)\)\s+\((?P<connection>[^/\s)]+/\d+\s+[^)]+)\),\s*start\s+(?P<start>[^(]+?)\s*$`)
)

// DefaultGrammars returns the built-in dialects in priority order.
func DefaultGrammars() []Grammar {
	return []Grammar{
		{Name: DialectFlexLM, Header: flexlmHeader, User: flexlmUser},
		{Name: DialectQuoted, Header: quotedHeader, Issued: quotedIssued, User: quotedUser},
	}
}

func (g Grammar) validate() error {
	if g.Name == "" {
		return fmt.Errorf("grammar name is required")
	}
	if g.Header == nil || g.Header.SubexpIndex("feature") < 0 {
		return fmt.Errorf("grammar %q: header must capture a \"feature\" group", g.Name)
	}
	if g.Issued != nil && g.Issued.SubexpIndex("issued") < 0 {
		return fmt.Errorf("grammar %q: issued pattern must capture an \"issued\" group", g.Name)
	}
	if g.User == nil || g.User.SubexpIndex("user") < 0 || g.User.SubexpIndex("host") < 0 {
		return fmt.Errorf("grammar %q: user pattern must capture \"user\" and \"host\" groups", g.Name)
	}
	return nil
}

// match holds the submatches of one successful regexp match.
type match struct {
	re     *regexp.Regexp
	groups []string
}

func find(re *regexp.Regexp, line string) (match, bool) {
	if re == nil {
		return match{}, false
	}
	groups := re.FindStringSubmatch(line)
	if groups == nil {
		return match{}, false
	}
	return match{re: re, groups: groups}, true
}

// get returns the named group, or "" when the group is absent or did not participate.
func (m match) get(name string) string {
	i := m.re.SubexpIndex(name)
	if i < 0 || i >= len(m.groups) {
		return ""
	}
	return m.groups[i]
}
