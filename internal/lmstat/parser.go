package lmstat

import (
	"strconv"
	"strings"

	"github.com/wstszx/LicStats/internal/license"
)

// Parser turns raw lmstat output into feature records.
//
// A Parser holds no mutable state and is safe for concurrent use.
type Parser struct {
	grammars []Grammar
}

var defaultParser = &Parser{grammars: DefaultGrammars()}

// NewParser creates a parser that tries the given grammars in order.
// With no grammars the built-in dialects are used.
func NewParser(grammars ...Grammar) (*Parser, error) {
	if len(grammars) == 0 {
		grammars = DefaultGrammars()
	}
	for _, g := range grammars {
		if err := g.validate(); err != nil {
			return nil, err
		}
	}
	return &Parser{grammars: append([]Grammar(nil), grammars...)}, nil
}

// Parse parses raw output using the built-in dialects.
func Parse(raw string) []license.Feature {
	return defaultParser.Parse(raw)
}

// Parse scans raw output line by line. Unrecognized lines are skipped.
func (p *Parser) Parse(raw string) []license.Feature {
	s := &scanner{
		grammars: p.grammars,
		features: make([]license.Feature, 0),
	}
	for _, line := range strings.Split(raw, "\n") {
		s.feed(strings.TrimSpace(line))
	}
	s.closeBlock()
	return s.features
}

type state int

const (
	scanningHeader state = iota
	withinBlock
)

// block is the feature currently being populated.
type block struct {
	grammar   int
	feature   license.Feature
	issuedSet bool
}

type scanner struct {
	grammars []Grammar
	state    state
	current  *block
	features []license.Feature
}

func (s *scanner) feed(line string) {
	if line == "" {
		return
	}
	for {
		switch s.state {
		case scanningHeader:
			s.scanHeader(line)
			return
		case withinBlock:
			if reprocess := s.scanBlock(line); !reprocess {
				return
			}
		}
	}
}

// scanHeader opens a new block when line matches a header grammar.
func (s *scanner) scanHeader(line string) {
	for i, g := range s.grammars {
		m, ok := find(g.Header, line)
		if !ok {
			continue
		}
		b := &block{
			grammar: i,
			feature: license.Feature{
				Name:    strings.TrimSpace(m.get("feature")),
				Users:   []license.User{},
				Dialect: g.Name,
			},
		}
		if n, ok := atoi(m.get("issued")); ok {
			b.feature.TotalLicenses = n
			b.issuedSet = true
		}
		if n, ok := atoi(m.get("inuse")); ok {
			b.feature.InUse = n
			b.feature.InUseReported = true
		}
		s.current = b
		s.state = withinBlock
		return
	}
}

// scanBlock consumes one line inside a block. It reports whether the line
// starts a new block and must be processed again while scanning for headers.
func (s *scanner) scanBlock(line string) bool {
	for _, g := range s.grammars {
		if g.Header.MatchString(line) {
			s.closeBlock()
			return true
		}
	}

	own := s.grammars[s.current.grammar]
	if !s.current.issuedSet {
		if m, ok := find(own.Issued, line); ok {
			if n, ok := atoi(m.get("issued")); ok {
				s.current.feature.TotalLicenses = n
				s.current.issuedSet = true
				return false
			}
		}
	}

	if u, ok := s.matchUser(line); ok {
		s.current.feature.Users = append(s.current.feature.Users, u)
	}
	return false
}

// matchUser tries the block's own grammar first, then the others in priority order.
func (s *scanner) matchUser(line string) (license.User, bool) {
	order := make([]int, 0, len(s.grammars))
	order = append(order, s.current.grammar)
	for i := range s.grammars {
		if i != s.current.grammar {
			order = append(order, i)
		}
	}

	for _, i := range order {
		m, ok := find(s.grammars[i].User, line)
		if !ok {
			continue
		}
		u := license.User{
			Username:   m.get("user"),
			Hostname:   m.get("host"),
			Connection: strings.TrimSpace(m.get("connection")),
			StartTime:  strings.TrimSpace(m.get("start")),
			Version:    m.get("version"),
			Details:    line,
		}
		if n, ok := atoi(m.get("linger")); ok {
			u.Linger = &n
		}
		return u, true
	}
	return license.User{}, false
}

// closeBlock finalizes the current feature. A reported in-use count is
// authoritative; otherwise the parsed users are counted.
func (s *scanner) closeBlock() {
	if s.current == nil {
		return
	}
	f := s.current.feature
	if !f.InUseReported {
		f.InUse = len(f.Users)
	}
	f.Available = f.TotalLicenses - f.InUse
	s.features = append(s.features, f)
	s.current = nil
	s.state = scanningHeader
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
