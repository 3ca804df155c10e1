// Package store persists call metadata and transcripts in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/voxbridge/realtime/internal/store/migrations"
)

// Call statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Transcript roles.
const (
	RoleCaller    = "caller"
	RoleAssistant = "assistant"
)

// ErrNotFound is returned when a call does not exist.
var ErrNotFound = errors.New("store: call not found")

// Call is one telephony call handled by the bridge.
type Call struct {
	ID          string     `json:"id"`
	ProviderSID string     `json:"provider_sid"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// TranscriptEntry is one utterance of a call, either side.
type TranscriptEntry struct {
	ID        int64     `json:"id"`
	CallID    string    `json:"call_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Final     bool      `json:"final"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the SQLite database. SQLite does not handle concurrent
// writers well, so the pool is pinned to a single connection and all access
// serializes through it.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path, applies migrations,
// and returns the store.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCall records a newly accepted call and returns it with a generated
// identifier.
func (s *Store) CreateCall(ctx context.Context, providerSID, from, to string) (*Call, error) {
	call := &Call{
		ID:          uuid.NewString(),
		ProviderSID: providerSID,
		From:        from,
		To:          to,
		Status:      StatusInProgress,
		StartedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (id, provider_sid, from_number, to_number, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		call.ID, call.ProviderSID, call.From, call.To, call.Status, call.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert call: %w", err)
	}
	return call, nil
}

// GetCall fetches one call by id.
func (s *Store) GetCall(ctx context.Context, id string) (*Call, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider_sid, from_number, to_number, status, started_at, ended_at
		 FROM calls WHERE id = ?`, id)
	return scanCall(row)
}

// GetCallByProviderSID fetches one call by the provider's call identifier.
func (s *Store) GetCallByProviderSID(ctx context.Context, sid string) (*Call, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider_sid, from_number, to_number, status, started_at, ended_at
		 FROM calls WHERE provider_sid = ?`, sid)
	return scanCall(row)
}

// UpdateCallStatus moves a call to a new status without ending it.
func (s *Store) UpdateCallStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE calls SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	return requireRow(res)
}

// FinishCall marks a call ended with the given terminal status.
func (s *Store) FinishCall(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE calls SET status = ?, ended_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish call: %w", err)
	}
	return requireRow(res)
}

// ListCalls returns calls newest first, optionally filtered by status.
// limit is clamped to [1, 100].
func (s *Store) ListCalls(ctx context.Context, status string, limit, offset int) ([]*Call, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, provider_sid, from_number, to_number, status, started_at, ended_at
		 FROM calls`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var calls []*Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// AppendTranscript stores one utterance for a call.
func (s *Store) AppendTranscript(ctx context.Context, callID, role, text string, final bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (call_id, role, text, final, created_at) VALUES (?, ?, ?, ?, ?)`,
		callID, role, text, final, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// ListTranscripts returns a call's transcript in conversation order.
func (s *Store) ListTranscripts(ctx context.Context, callID string) ([]*TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, call_id, role, text, final, created_at
		 FROM transcripts WHERE call_id = ? ORDER BY id ASC`, callID)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var entries []*TranscriptEntry
	for rows.Next() {
		var e TranscriptEntry
		if err := rows.Scan(&e.ID, &e.CallID, &e.Role, &e.Text, &e.Final, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (*Call, error) {
	var c Call
	var endedAt sql.NullTime
	err := row.Scan(&c.ID, &c.ProviderSID, &c.From, &c.To, &c.Status, &c.StartedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan call: %w", err)
	}
	if endedAt.Valid {
		c.EndedAt = &endedAt.Time
	}
	return &c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
