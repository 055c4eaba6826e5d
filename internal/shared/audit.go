package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AuditLog is an informational activity record. It is never read back by the
// ledgers.
type AuditLog struct {
	BusinessID uuid.UUID
	ActorID    uuid.UUID
	Action     string
	Entity     string
	EntityID   string
	Meta       map[string]any
	At         time.Time
}

// AuditQuery selects activity rows of one business, newest first. Zero
// values leave a filter unset; Limit <= 0 returns every match.
type AuditQuery struct {
	BusinessID uuid.UUID
	ActorID    *uuid.UUID
	Entity     string
	EntityID   string
	Action     string
	From       time.Time
	To         time.Time
	Offset     int
	Limit      int
}

// AuditLogger writes records into activity_logs.
type AuditLogger struct {
	db DBTX
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db DBTX) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.validate(); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	at := log.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.db.Exec(ctx, `INSERT INTO activity_logs (business_id, actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.BusinessID, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// Query reads activity rows back for the timeline.
func (l *AuditLogger) Query(ctx context.Context, q AuditQuery) ([]AuditLog, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("audit logger not initialised")
	}
	var (
		where = []string{"business_id = $1"}
		args  = []any{q.BusinessID}
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if q.ActorID != nil {
		add("actor_id = $%d", *q.ActorID)
	}
	if q.Entity != "" {
		add("entity = $%d", q.Entity)
	}
	if q.EntityID != "" {
		add("entity_id = $%d", q.EntityID)
	}
	if q.Action != "" {
		add("action = $%d", q.Action)
	}
	if !q.From.IsZero() {
		add("occurred_at >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("occurred_at <= $%d", q.To)
	}
	sql := `SELECT business_id, actor_id, action, entity, entity_id, meta, occurred_at FROM activity_logs WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY occurred_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit, q.Offset)
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := l.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditLog
	for rows.Next() {
		var (
			log  AuditLog
			meta []byte
		)
		if err := rows.Scan(&log.BusinessID, &log.ActorID, &log.Action, &log.Entity, &log.EntityID, &meta, &log.At); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &log.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, log)
	}
	return out, rows.Err()
}

func (log AuditLog) validate() error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	return nil
}

// MemoryAuditLogger keeps records in process. Safe for concurrent use.
type MemoryAuditLogger struct {
	mu   sync.Mutex
	logs []AuditLog
}

// NewMemoryAuditLogger returns an empty in-process logger.
func NewMemoryAuditLogger() *MemoryAuditLogger {
	return &MemoryAuditLogger{}
}

// Record implements the audit port.
func (l *MemoryAuditLogger) Record(_ context.Context, log AuditLog) error {
	if err := log.validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	l.logs = append(l.logs, log)
	return nil
}

// Entries returns a copy of recorded logs.
func (l *MemoryAuditLogger) Entries() []AuditLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditLog, len(l.logs))
	copy(out, l.logs)
	return out
}

// Query implements the timeline read over the in-process records.
func (l *MemoryAuditLogger) Query(_ context.Context, q AuditQuery) ([]AuditLog, error) {
	l.mu.Lock()
	var out []AuditLog
	for i := len(l.logs) - 1; i >= 0; i-- {
		if q.matches(l.logs[i]) {
			out = append(out, l.logs[i])
		}
	}
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (q AuditQuery) matches(log AuditLog) bool {
	switch {
	case log.BusinessID != q.BusinessID:
		return false
	case q.ActorID != nil && log.ActorID != *q.ActorID:
		return false
	case q.Entity != "" && log.Entity != q.Entity:
		return false
	case q.EntityID != "" && log.EntityID != q.EntityID:
		return false
	case q.Action != "" && log.Action != q.Action:
		return false
	case !q.From.IsZero() && log.At.Before(q.From):
		return false
	case !q.To.IsZero() && log.At.After(q.To):
		return false
	}
	return true
}
