// audit.go - audit trail for state-changing actions.
//
// Purchases and every admin action are written through a Recorder. Writes
// are best-effort: callers log a failed Record and carry on.
//
// Actor types: "user" | "anonymous" | "system"
// Action naming convention: "{resource}.{verb}"
//
//	e.g. "rental.create", "promo_code.create", "video_token.revoke"
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one audit_log row.
type Entry struct {
	ID           string                 `json:"id"`
	ActorType    string                 `json:"actorType"`
	ActorID      string                 `json:"actorId,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   string                 `json:"resourceId,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	IPAddress    string                 `json:"ipAddress,omitempty"`
	UserAgent    string                 `json:"userAgent,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// Filter narrows Query. Zero fields match everything.
type Filter struct {
	ActorID string
	Action  string // prefix match: "rental." matches every rental action
	Limit   int
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > maxLimit {
		return defaultLimit
	}
	return f.Limit
}

// Recorder persists and lists entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	// Query returns matching entries, newest first.
	Query(ctx context.Context, f Filter) ([]Entry, error)
}

// WithRequest fills the client IP and User-Agent from r.
func WithRequest(r *http.Request, e Entry) Entry {
	ip := r.Header.Get("CF-Connecting-IP")
	if ip == "" {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	e.IPAddress = ip
	e.UserAgent = r.UserAgent()
	return e
}

func prepare(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// ── PostgreSQL ────────────────────────────────────────────────────────────────

// SQLRecorder writes to the audit_log table (db/migrations/002_audit_log.sql).
type SQLRecorder struct {
	db *sql.DB
}

func NewSQLRecorder(db *sql.DB) *SQLRecorder { return &SQLRecorder{db: db} }

func (s *SQLRecorder) Record(ctx context.Context, e Entry) error {
	e = prepare(e)
	details, err := json.Marshal(e.Details)
	if err != nil || e.Details == nil {
		details = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			id, actor_type, actor_id, action,
			resource_type, resource_id, details,
			ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.ActorType, e.ActorID, e.Action,
		e.ResourceType, e.ResourceID, string(details),
		e.IPAddress, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert %s: %w", e.Action, err)
	}
	return nil
}

func (s *SQLRecorder) Query(ctx context.Context, f Filter) ([]Entry, error) {
	where := "WHERE 1=1"
	var args []interface{}
	if f.ActorID != "" {
		args = append(args, f.ActorID)
		where += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	if f.Action != "" {
		args = append(args, f.Action+"%")
		where += fmt.Sprintf(" AND action LIKE $%d", len(args))
	}
	args = append(args, f.limit())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_type, actor_id, action,
		       resource_type, resource_id, details,
		       ip_address, user_agent, created_at
		FROM audit_log
		`+where+`
		ORDER BY created_at DESC
		LIMIT $`+fmt.Sprint(len(args)),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var details string
		if err := rows.Scan(
			&e.ID, &e.ActorType, &e.ActorID, &e.Action,
			&e.ResourceType, &e.ResourceID, &details,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(details), &e.Details)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ── In memory ─────────────────────────────────────────────────────────────────

// MemoryRecorder keeps entries in process. Used with the memory store.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRecorder() *MemoryRecorder { return &MemoryRecorder{} }

func (m *MemoryRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, prepare(e))
	return nil
}

func (m *MemoryRecorder) Query(_ context.Context, f Filter) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Entry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < f.limit(); i-- {
		e := m.entries[i]
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && !strings.HasPrefix(e.Action, f.Action) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
