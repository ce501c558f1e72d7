package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownWindow is returned by ParseWindow for unrecognized names.
var ErrUnknownWindow = errors.New("snapshot: unknown window")

// Window selects which snapshots a query covers.
type Window string

const (
	Latest Window = "latest"
	Week   Window = "week"
	Month  Window = "month"
)

// ParseWindow converts a query value into a Window. The empty string is Latest.
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return Latest, nil
	case Latest, Week, Month:
		return w, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownWindow, s)
	}
}

// Days returns the look-back of the window in days, 0 for Latest.
func (w Window) Days() int {
	switch w {
	case Week:
		return 7
	case Month:
		return 30
	default:
		return 0
	}
}

// Cutoff returns the earliest capture time included in the window.
// It is the zero time for Latest.
func (w Window) Cutoff(now time.Time) time.Time {
	if w.Days() == 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -w.Days())
}

func (w Window) String() string {
	return string(w)
}
