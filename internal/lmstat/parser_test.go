package lmstat

import (
	"regexp"
	"strings"
	"testing"
)

const flexlmDump = `lmutil - Copyright (c) 1989-2019 Flexera. All Rights Reserved.
Flexible License Manager status on Mon 10/14/2024 09:45

License server status: 29000@hqcndb
    License file(s) on hqcndb: C:\lic\ugslmd.lic:

    hqcndb: license server UP (MASTER) v11.16.4

Vendor daemon status (on hqcndb):

    ugslmd: UP v11.16.4
Feature usage info:

Users of solid_modeling:  (Total of 10 licenses issued;  Total of 3 licenses in use)

  "solid_modeling" v2024.12, vendor: ugslmd, expiry: 31-dec-2025
  floating license

    alice ws-alice ws-alice (v2024.12) (HQCNDB/29000 1201), start Mon 10/14 8:01 (linger: 7200)
    bob ws-bob ws-bob (v2024.12) (HQCNDB/29000 1302), start Mon 10/14 8:15 (linger: 7200)
    carol ws-carol ws-carol (v2024.12) (HQCNDB/29000 1403), start Mon 10/14 9:02 (linger: 7200)

Users of drafting:  (Total of 5 licenses issued;  Total of 0 licenses in use)

Users of nx_cam:  (Total of 2 licenses issued;  Total of 1 license in use)

  "nx_cam" v2024.12, vendor: ugslmd, expiry: 31-dec-2025
  floating license

    alice ws-alice2 ws-alice2 (v2024.12) (HQCNDB/29000 1501), start Mon 10/14 9:30 (linger: 600)
`

const quotedDump = `License server status: 27000@lic01
"cad_core" licenses issued: 8 (floating) licenses in use: 2
    dave lab-07 /dev/pts/1 (v11.2) (lic01/27000 305), start Tue 3/4 14:02
    erin lab-09 /dev/pts/3 (v11.2) (lic01/27000 411), start Tue 3/4 15:40
"cad_view" licenses issued licenses in use:
    Total of 4 licenses issued
    Total of 6 licenses issued
    frank lab-11 /dev/pts/2 (v11.2) (lic01/27000 512), start Tue 3/4 16:00
`

func TestParse_FlexLMDialect(t *testing.T) {
	features := Parse(flexlmDump)

	if len(features) != 3 {
		t.Fatalf("Expected 3 features, got %d", len(features))
	}

	solid := features[0]
	if solid.Name != "solid_modeling" {
		t.Errorf("Expected feature solid_modeling, got %q", solid.Name)
	}
	if solid.TotalLicenses != 10 || solid.InUse != 3 || solid.Available != 7 {
		t.Errorf("Expected total=10 in_use=3 available=7, got total=%d in_use=%d available=%d",
			solid.TotalLicenses, solid.InUse, solid.Available)
	}
	if len(solid.Users) != 3 {
		t.Fatalf("Expected 3 users, got %d", len(solid.Users))
	}
	if solid.Dialect != DialectFlexLM {
		t.Errorf("Expected dialect %s, got %s", DialectFlexLM, solid.Dialect)
	}

	alice := solid.Users[0]
	if alice.Username != "alice" || alice.Hostname != "ws-alice" {
		t.Errorf("Unexpected user identity: %+v", alice)
	}
	if alice.Connection != "HQCNDB/29000 1201" {
		t.Errorf("Expected connection %q, got %q", "HQCNDB/29000 1201", alice.Connection)
	}
	if alice.StartTime != "Mon 10/14 8:01" {
		t.Errorf("Expected start time %q, got %q", "Mon 10/14 8:01", alice.StartTime)
	}
	if alice.Linger == nil || *alice.Linger != 7200 {
		t.Errorf("Expected linger 7200, got %v", alice.Linger)
	}
	if !strings.HasPrefix(alice.Details, "alice ws-alice") {
		t.Errorf("Expected details to hold the raw line, got %q", alice.Details)
	}

	drafting := features[1]
	if drafting.InUse != 0 || drafting.Available != 5 || len(drafting.Users) != 0 {
		t.Errorf("Unexpected drafting feature: %+v", drafting)
	}
	if drafting.Users == nil {
		t.Error("Expected an empty, non-nil user list")
	}

	cam := features[2]
	if cam.InUse != 1 || len(cam.Users) != 1 || cam.Users[0].Hostname != "ws-alice2" {
		t.Errorf("Unexpected nx_cam feature: %+v", cam)
	}
}

func TestParse_QuotedDialect(t *testing.T) {
	features := Parse(quotedDump)

	if len(features) != 2 {
		t.Fatalf("Expected 2 features, got %d", len(features))
	}

	core := features[0]
	if core.Name != "cad_core" || core.Dialect != DialectQuoted {
		t.Errorf("Unexpected feature: %+v", core)
	}
	if core.TotalLicenses != 8 || core.InUse != 2 || core.Available != 6 {
		t.Errorf("Expected total=8 in_use=2 available=6, got total=%d in_use=%d available=%d",
			core.TotalLicenses, core.InUse, core.Available)
	}
	if len(core.Users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(core.Users))
	}
	dave := core.Users[0]
	if dave.Connection != "lic01/27000 305" {
		t.Errorf("Expected connection %q, got %q", "lic01/27000 305", dave.Connection)
	}
	if dave.Version != "11.2" {
		t.Errorf("Expected version 11.2, got %q", dave.Version)
	}
	if dave.StartTime != "Tue 3/4 14:02" {
		t.Errorf("Expected start time %q, got %q", "Tue 3/4 14:02", dave.StartTime)
	}
	if dave.Linger != nil {
		t.Errorf("Expected no linger for quoted dialect, got %d", *dave.Linger)
	}

	view := features[1]
	if view.TotalLicenses != 4 {
		t.Errorf("Expected issued count from the first detail line (4), got %d", view.TotalLicenses)
	}
	if view.InUse != 1 || view.Available != 3 {
		t.Errorf("Expected in-use counted from users (1) and available 3, got in_use=%d available=%d",
			view.InUse, view.Available)
	}
}

func TestParse_ReportedInUseIsAuthoritative(t *testing.T) {
	raw := `Users of f1:  (Total of 4 licenses issued;  Total of 3 licenses in use)
    alice h1 h1 (v1) (srv/27000 1), start Mon 10/14 8:01 (linger: 60)
`
	features := Parse(raw)
	if len(features) != 1 {
		t.Fatalf("Expected 1 feature, got %d", len(features))
	}
	if features[0].InUse != 3 || len(features[0].Users) != 1 {
		t.Errorf("Expected in_use=3 with 1 parsed user, got in_use=%d users=%d",
			features[0].InUse, len(features[0].Users))
	}
	if features[0].Available != 1 {
		t.Errorf("Expected available 1, got %d", features[0].Available)
	}
}

func TestParse_PartialHeaderKeepsBlockOpen(t *testing.T) {
	raw := `Users of solid_modeling:  (Total of 10 licenses issued;  Total of 2 licenses in use)
    alice ws1 ws1 (v1) (srv/27000 1), start Mon 10/14 8:01 (linger: 60)
Users of broken:  (Total of 10 licenses issued;
    bob ws2 ws2 (v1) (srv/27000 2), start Mon 10/14 8:05 (linger: 60)
`
	features := Parse(raw)
	if len(features) != 1 {
		t.Fatalf("Expected the partial header to be skipped, got %d features", len(features))
	}
	if len(features[0].Users) != 2 {
		t.Errorf("Expected both users in the open block, got %d", len(features[0].Users))
	}
	if features[0].Users[1].Username != "bob" {
		t.Errorf("Expected bob as second user, got %s", features[0].Users[1].Username)
	}
}

func TestParse_ToleratesNoise(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantFeatures int
		wantUsers    int
	}{
		{"empty input", "", 0, 0},
		{"only noise", "garbage\n\n---\nlicense server UP\n", 0, 0},
		{"user before any header", "alice ws1 ws1 (v1) (srv/27000 1), start Mon 8:01 (linger: 5)\n", 0, 0},
		{"crlf line endings", strings.ReplaceAll(flexlmDump, "\n", "\r\n"), 3, 4},
		{"back to back headers",
			"Users of a:  (Total of 1 license issued;  Total of 0 licenses in use)\n" +
				"Users of b:  (Total of 1 license issued;  Total of 0 licenses in use)\n", 2, 0},
		{"mixed dialects", flexlmDump + quotedDump, 5, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features := Parse(tt.raw)
			if len(features) != tt.wantFeatures {
				t.Fatalf("Expected %d features, got %d", tt.wantFeatures, len(features))
			}
			users := 0
			for _, f := range features {
				users += len(f.Users)
				if f.Available != f.TotalLicenses-f.InUse {
					t.Errorf("Feature %s: available %d != total %d - in_use %d",
						f.Name, f.Available, f.TotalLicenses, f.InUse)
				}
			}
			if users != tt.wantUsers {
				t.Errorf("Expected %d users, got %d", tt.wantUsers, users)
			}
		})
	}
}

func TestParse_FallsBackToOtherUserGrammar(t *testing.T) {
	// A flexlm block whose checkout line lacks the linger clause.
	raw := `Users of f1:  (Total of 2 licenses issued;  Total of 1 license in use)
    alice h1 /dev/tty (v2024.1) (srv/27000 101), start Mon 10/14 8:01
`
	features := Parse(raw)
	if len(features) != 1 || len(features[0].Users) != 1 {
		t.Fatalf("Expected 1 feature with 1 user, got %+v", features)
	}
	if u := features[0].Users[0]; u.Linger != nil || u.Version != "2024.1" {
		t.Errorf("Expected quoted-dialect user match, got %+v", u)
	}
}

func TestNewParser_CustomGrammar(t *testing.T) {
	rlm := Grammar{
		Name:   "rlm",
		Header: regexp.MustCompile(`^(?P<feature>\S+) v\S+: count: (?P<issued>\d+), inuse: (?P<inuse>\d+)`),
		User:   regexp.MustCompile(`^(?P<user>[^@\s]+)@(?P<host>\S+)$`),
	}

	p, err := NewParser(append(DefaultGrammars(), rlm)...)
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}

	raw := "sim v3.0: count: 5, inuse: 1\n  jdoe@node1\n" + flexlmDump
	features := p.Parse(raw)
	if len(features) != 4 {
		t.Fatalf("Expected 4 features, got %d", len(features))
	}
	sim := features[0]
	if sim.Dialect != "rlm" || sim.TotalLicenses != 5 || sim.InUse != 1 {
		t.Errorf("Unexpected rlm feature: %+v", sim)
	}
	if len(sim.Users) != 1 || sim.Users[0].Username != "jdoe" || sim.Users[0].Hostname != "node1" {
		t.Errorf("Unexpected rlm users: %+v", sim.Users)
	}
}

func TestNewParser_RejectsInvalidGrammar(t *testing.T) {
	tests := []struct {
		name    string
		grammar Grammar
	}{
		{"missing name", Grammar{Header: flexlmHeader, User: flexlmUser}},
		{"missing header", Grammar{Name: "x", User: flexlmUser}},
		{"header without feature group", Grammar{Name: "x", Header: regexp.MustCompile(`^Users`), User: flexlmUser}},
		{"user without host group", Grammar{Name: "x", Header: flexlmHeader, User: regexp.MustCompile(`^(?P<user>\S+)`)}},
		{"issued without group", Grammar{Name: "x", Header: flexlmHeader, User: flexlmUser, Issued: regexp.MustCompile(`issued`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewParser(tt.grammar); err == nil {
				t.Error("Expected an error, got nil")
			}
		})
	}
}
