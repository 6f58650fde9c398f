package compliance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuietWindow is a local-time window during which non-urgent outbound contact
// is deferred or blocked. Start after End means the window crosses midnight
// (the common 22:00-08:00 case).
type QuietWindow struct {
	Start string // "HH:MM"
	End   string // "HH:MM"
}

// Configured reports whether both bounds are set.
func (w QuietWindow) Configured() bool {
	return w.Start != "" && w.End != ""
}

// Contains reports whether the local time t falls inside the window.
func (w QuietWindow) Contains(t time.Time) (bool, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return false, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false, err
	}
	if start == end {
		return false, nil
	}

	m := t.Hour()*60 + t.Minute()
	if start < end {
		return m >= start && m < end, nil
	}
	// crosses midnight
	return m >= start || m < end, nil
}

// NextOpen returns the next moment at or after t when the window ends, in t's
// location. Callers should only use this when Contains(t) is true.
func (w QuietWindow) NextOpen(t time.Time) (time.Time, error) {
	end, err := parseClock(w.End)
	if err != nil {
		return time.Time{}, err
	}

	open := time.Date(t.Year(), t.Month(), t.Day(), end/60, end%60, 0, 0, t.Location())
	if !open.After(t) {
		open = open.AddDate(0, 0, 1)
	}
	return open, nil
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("compliance: invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("compliance: invalid clock %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("compliance: invalid clock %q", s)
	}
	return h*60 + m, nil
}

// ResolveLocation applies the timezone resolution order for quiet-hours math:
// explicit recipient timezone, then the client's configured timezone, then UTC.
func ResolveLocation(recipientTZ, clientTZ string) *time.Location {
	for _, name := range []string{recipientTZ, clientTZ} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}
