// Package store provides SQLite persistence for worktrack: a journal of
// sessions and bucket summaries, and the transmission outbox.
package store

import (
	"time"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// SummaryRow is a journaled bucket summary.
type SummaryRow struct {
	ID         int64            `json:"id"`
	UserID     string           `json:"user_id"`
	TeamID     string           `json:"team_id"`
	RecordedAt time.Time        `json:"recorded_at"`
	Summary    activity.Summary `json:"summary"`
}

// SessionRow is a journaled tracking session.
type SessionRow struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	TeamID    string        `json:"team_id"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Active    time.Duration `json:"active"`
	Idle      time.Duration `json:"idle"`
	Score     int           `json:"score"`
}

// OutboxRow is an outbox entry as listed by `worktrack outbox`.
type OutboxRow struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Bytes     int       `json:"bytes"`
	QueuedAt  time.Time `json:"queued_at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
