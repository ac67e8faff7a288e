package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// SaveSummary journals a closed bucket together with its activity records.
func (db *DB) SaveSummary(ctx context.Context, sess activity.Session, s activity.Summary) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO summaries
		(user_id, team_id, bucket_start, bucket_end, total_minutes, active_minutes, idle_minutes,
		 productive_minutes, unproductive_minutes, score, narrative, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.UserID, sess.TeamID, formatTime(s.BucketStart), formatTime(s.BucketEnd),
		s.TotalMinutes, s.ActiveMinutes, s.IdleMinutes, s.ProductiveMinutes, s.UnproductiveMinutes,
		s.ProductivityScore, s.Narrative, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("inserting summary: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, app := range s.TopActivities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO summary_apps (summary_id, rank, name, minutes, category, productive, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, app.Name, app.Minutes, string(app.Category), app.Productive, app.Confidence,
		); err != nil {
			return fmt.Errorf("inserting summary app %q: %w", app.Name, err)
		}
	}
	return tx.Commit()
}

// ListSummaries returns journaled summaries whose bucket started at or after
// since, newest first. A limit <= 0 returns all of them.
func (db *DB) ListSummaries(ctx context.Context, since time.Time, limit int) ([]SummaryRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, team_id, bucket_start, bucket_end, total_minutes, active_minutes,
		        idle_minutes, productive_minutes, unproductive_minutes, score, narrative, recorded_at
		FROM summaries
		WHERE bucket_start >= ?
		ORDER BY bucket_start DESC, id DESC
		LIMIT ?`,
		formatTime(since), limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SummaryRow
	for rows.Next() {
		var r SummaryRow
		var start, end, recorded string
		if err := rows.Scan(&r.ID, &r.UserID, &r.TeamID, &start, &end,
			&r.Summary.TotalMinutes, &r.Summary.ActiveMinutes, &r.Summary.IdleMinutes,
			&r.Summary.ProductiveMinutes, &r.Summary.UnproductiveMinutes,
			&r.Summary.ProductivityScore, &r.Summary.Narrative, &recorded); err != nil {
			return nil, err
		}
		r.Summary.BucketStart = parseTime(start).Local()
		r.Summary.BucketEnd = parseTime(end).Local()
		r.RecordedAt = parseTime(recorded)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		apps, err := db.summaryApps(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Summary.TopActivities = apps
	}
	return out, nil
}

func (db *DB) summaryApps(ctx context.Context, summaryID int64) ([]activity.AppRecord, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, minutes, category, productive, confidence
		FROM summary_apps WHERE summary_id = ? ORDER BY rank`,
		summaryID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var apps []activity.AppRecord
	for rows.Next() {
		var a activity.AppRecord
		var cat string
		if err := rows.Scan(&a.Name, &a.Minutes, &cat, &a.Productive, &a.Confidence); err != nil {
			return nil, err
		}
		a.Category = activity.Category(cat)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// StartSession journals the start of a tracking session.
func (db *DB) StartSession(ctx context.Context, id string, sess activity.Session, started time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, team_id, started_at) VALUES (?, ?, ?, ?)",
		id, sess.UserID, sess.TeamID, formatTime(started),
	)
	return err
}

// EndSession records the final totals of a session.
func (db *DB) EndSession(ctx context.Context, id string, snap activity.Snapshot) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET ended_at = ?, active_ms = ?, idle_ms = ?, score = ? WHERE id = ?",
		formatTime(snap.EndTime), snap.TotalActive.Milliseconds(), snap.TotalIdle.Milliseconds(),
		snap.ProductivityScore, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// ListSessions returns the most recent sessions, newest first.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, team_id, started_at, COALESCE(ended_at, ''), active_ms, idle_ms, score
		FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var started, ended string
		var activeMS, idleMS int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.TeamID, &started, &ended, &activeMS, &idleMS, &r.Score); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		if ended != "" {
			r.EndedAt = parseTime(ended)
		}
		r.Active = time.Duration(activeMS) * time.Millisecond
		r.Idle = time.Duration(idleMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
