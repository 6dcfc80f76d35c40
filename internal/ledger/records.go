package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldcam/internal/upload"
)

// Record is one resolved upload ticket.
type Record struct {
	ID          int64     `json:"id"`
	TicketID    string    `json:"ticket_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Seq         uint64    `json:"frame_seq"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	Stale       bool      `json:"stale"`
	HasFix      bool      `json:"has_fix"`
	CapturedAt  time.Time `json:"captured_at"`
	SubmittedAt time.Time `json:"submitted_at"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status    string
	SessionID string
	Limit     int
}

const recordColumns = "id, ticket_id, session_id, frame_seq, status, attempts, error_message, stale, has_fix, captured_at, submitted_at, resolved_at"

// RecordFromTicket snapshots a resolved ticket.
func RecordFromTicket(t *upload.Ticket) Record {
	rec := Record{
		TicketID:    t.ID,
		SessionID:   t.SessionID,
		Seq:         t.Seq,
		Status:      string(t.Status()),
		Attempts:    t.Attempts(),
		Stale:       t.Stale,
		HasFix:      t.HasFix,
		CapturedAt:  t.CapturedAt,
		SubmittedAt: t.SubmittedAt,
		ResolvedAt:  t.ResolvedAt(),
	}
	if err := t.Err(); err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// Put stores rec, replacing any earlier row for the same ticket.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.TicketID) == "" {
		return errors.New("ledger record requires a ticket id")
	}
	if rec.ResolvedAt.IsZero() {
		rec.ResolvedAt = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO uploads (
            ticket_id, session_id, frame_seq, status, attempts, error_message,
            stale, has_fix, captured_at, submitted_at, resolved_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(ticket_id) DO UPDATE SET
            status = excluded.status,
            attempts = excluded.attempts,
            error_message = excluded.error_message,
            resolved_at = excluded.resolved_at`,
		rec.TicketID,
		nullableString(rec.SessionID),
		int64(rec.Seq),
		rec.Status,
		rec.Attempts,
		nullableString(rec.Error),
		boolToInt(rec.Stale),
		boolToInt(rec.HasFix),
		nullableTime(rec.CapturedAt),
		nullableTime(rec.SubmittedAt),
		rec.ResolvedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert upload record: %w", err)
	}
	return nil
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	query := `SELECT ` + recordColumns + ` FROM uploads`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns the record for ticketID, or nil when none exists.
func (s *Store) Get(ctx context.Context, ticketID string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM uploads WHERE ticket_id = ?`, ticketID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload record: %w", err)
	}
	return &rec, nil
}

// Stats returns record counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM uploads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("upload stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Clear deletes records, optionally only those with status, and returns the
// number removed.
func (s *Store) Clear(ctx context.Context, status string) (int64, error) {
	query := `DELETE FROM uploads`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear uploads: %w", err)
	}
	return res.RowsAffected()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec          Record
		sessionID    sql.NullString
		seq          int64
		errorMessage sql.NullString
		stale        int
		hasFix       int
		capturedRaw  sql.NullString
		submitRaw    sql.NullString
		resolvedRaw  string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.TicketID,
		&sessionID,
		&seq,
		&rec.Status,
		&rec.Attempts,
		&errorMessage,
		&stale,
		&hasFix,
		&capturedRaw,
		&submitRaw,
		&resolvedRaw,
	); err != nil {
		return Record{}, err
	}
	rec.SessionID = sessionID.String
	rec.Seq = uint64(seq)
	rec.Error = errorMessage.String
	rec.Stale = stale != 0
	rec.HasFix = hasFix != 0
	if ts, err := parseTimeString(capturedRaw.String); err == nil {
		rec.CapturedAt = ts
	}
	if ts, err := parseTimeString(submitRaw.String); err == nil {
		rec.SubmittedAt = ts
	}
	if ts, err := parseTimeString(resolvedRaw); err == nil {
		rec.ResolvedAt = ts
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
