// Package scheduler implements the optimization components: priority
// scoring, skill matching, velocity calibration, conflict detection,
// what-if impact analysis, sprint planning and nudge generation. All
// components read and write through the repo facade and never mutate
// state the caller did not ask for.
package scheduler

import (
	"log/slog"
	"math"
	"time"

	"planwise/internal/config"
	"planwise/internal/logging"
	"planwise/internal/repo"
)

type Engine struct {
	Repo   repo.Repo
	Config *config.Config
	Log    *slog.Logger
	Now    func() time.Time
}

func New(r repo.Repo, cfg *config.Config, log *slog.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.Discard()
	}
	return Engine{Repo: r, Config: cfg, Log: log, Now: time.Now}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Severity ordering shared by conflicts and nudges.
var severityRank = map[string]int{
	"low":      0,
	"info":     0,
	"medium":   1,
	"warning":  1,
	"high":     2,
	"critical": 3,
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole days from a to b, negative when b precedes a.
func daysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

// span normalizes an assignment window for overlap math. Open ends
// stretch a year around the reference date.
func span(start, end, ref time.Time) (time.Time, time.Time) {
	if start.IsZero() {
		start = ref.AddDate(-1, 0, 0)
	}
	if end.IsZero() {
		end = ref.AddDate(1, 0, 0)
	}
	return dateOnly(start), dateOnly(end)
}

// overlaps reports whether two inclusive date windows intersect.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
