package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TobiSchelling/newsrelay/internal/audit"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// AuditStats contains aggregate audit statistics.
type AuditStats struct {
	TotalEvents int
	ByDecision  map[string]int
	AvgRisk     float64
	LastEventAt *time.Time
}

// Record stores an audit event. It implements audit.Sink.
func (db *DB) Record(ctx context.Context, e audit.Event) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO audit_events
		(session_id, requested_action, business_context, technical_context, decision, rationale, risk_score, urgency_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.RequestedAction, e.BusinessContext, e.TechnicalContext,
		e.Decision, e.Rationale, e.RiskScore, e.UrgencyScore,
		created.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit event %s: %w", e.SessionID, err)
	}
	return nil
}

// GetRecentAuditEvents returns the newest events first.
func (db *DB) GetRecentAuditEvents(limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		`SELECT session_id, requested_action, business_context, technical_context,
		decision, rationale, risk_score, urgency_score, created_at
		FROM audit_events ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                              audit.Event
			business, technical, rationale sql.NullString
			created                        string
		)
		if err := rows.Scan(&e.SessionID, &e.RequestedAction, &business, &technical,
			&e.Decision, &rationale, &e.RiskScore, &e.UrgencyScore, &created); err != nil {
			return nil, err
		}
		e.BusinessContext = business.String
		e.TechnicalContext = technical.String
		e.Rationale = rationale.String
		if t, err := time.Parse(timeLayout, created); err == nil {
			e.CreatedAt = t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetAuditStats returns event counts per decision.
func (db *DB) GetAuditStats() (*AuditStats, error) {
	s := &AuditStats{ByDecision: map[string]int{}}

	var avg sql.NullFloat64
	var last sql.NullString
	err := db.conn.QueryRow(
		"SELECT COUNT(*), AVG(risk_score), MAX(created_at) FROM audit_events",
	).Scan(&s.TotalEvents, &avg, &last)
	if err != nil {
		return nil, err
	}
	s.AvgRisk = avg.Float64
	if last.Valid {
		if t, err := time.Parse(timeLayout, last.String); err == nil {
			s.LastEventAt = &t
		}
	}

	rows, err := db.conn.Query("SELECT decision, COUNT(*) FROM audit_events GROUP BY decision")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var decision string
		var n int
		if err := rows.Scan(&decision, &n); err != nil {
			return nil, err
		}
		s.ByDecision[decision] = n
	}
	return s, rows.Err()
}

// PruneAuditEvents deletes events older than cutoff and returns how many were removed.
func (db *DB) PruneAuditEvents(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(
		"DELETE FROM audit_events WHERE created_at < ?",
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
