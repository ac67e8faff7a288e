package store

import (
	"context"
	"fmt"
	"time"

	"github.com/blackwell-systems/worktrack/internal/transmit"
)

// Outbox adapts the outbox table to transmit.Outbox.
type Outbox struct {
	db *DB
}

// Outbox returns the database's transmission outbox.
func (db *DB) Outbox() *Outbox {
	return &Outbox{db: db}
}

// Enqueue parks an envelope whose delivery failed.
func (o *Outbox) Enqueue(ctx context.Context, env transmit.Envelope) error {
	_, err := o.db.conn.ExecContext(ctx,
		"INSERT INTO outbox (kind, body, queued_at) VALUES (?, ?, ?)",
		string(env.Kind), env.Body, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("enqueueing %s envelope: %w", env.Kind, err)
	}
	return nil
}

// Peek returns up to limit envelopes, oldest first, without removing them.
func (o *Outbox) Peek(ctx context.Context, limit int) ([]transmit.QueuedEnvelope, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := o.db.conn.QueryContext(ctx,
		"SELECT id, kind, body, queued_at, attempts FROM outbox ORDER BY id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []transmit.QueuedEnvelope
	for rows.Next() {
		var q transmit.QueuedEnvelope
		var kind, queued string
		if err := rows.Scan(&q.ID, &kind, &q.Envelope.Body, &queued, &q.Attempts); err != nil {
			return nil, err
		}
		q.Envelope.Kind = transmit.Kind(kind)
		q.QueuedAt = parseTime(queued)
		out = append(out, q)
	}
	return out, rows.Err()
}

// Remove deletes a delivered envelope.
func (o *Outbox) Remove(ctx context.Context, id int64) error {
	_, err := o.db.conn.ExecContext(ctx, "DELETE FROM outbox WHERE id = ?", id)
	return err
}

// MarkAttempt records a failed replay.
func (o *Outbox) MarkAttempt(ctx context.Context, id int64, cause string) error {
	_, err := o.db.conn.ExecContext(ctx,
		"UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?",
		cause, id,
	)
	return err
}

// List returns outbox metadata for display, oldest first.
func (o *Outbox) List(ctx context.Context) ([]OutboxRow, error) {
	rows, err := o.db.conn.QueryContext(ctx,
		"SELECT id, kind, length(body), queued_at, attempts, COALESCE(last_error, '') FROM outbox ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []OutboxRow
	for rows.Next() {
		var r OutboxRow
		var queued string
		if err := rows.Scan(&r.ID, &r.Kind, &r.Bytes, &queued, &r.Attempts, &r.LastError); err != nil {
			return nil, err
		}
		r.QueuedAt = parseTime(queued)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Purge deletes every outbox entry and returns how many were removed.
func (o *Outbox) Purge(ctx context.Context) (int64, error) {
	res, err := o.db.conn.ExecContext(ctx, "DELETE FROM outbox")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
