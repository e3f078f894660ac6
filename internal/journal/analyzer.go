package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// Transition is one journaled state change.
type Transition struct {
	ID         int64  `json:"id"`
	SessionID  int64  `json:"session_id"`
	Seq        int    `json:"seq"`
	Timestamp  int64  `json:"timestamp"`
	State      string `json:"state"`
	PositionMS int64  `json:"position_ms"`
	Ended      bool   `json:"ended"`
	Error      string `json:"error,omitempty"`
}

// Session is one journaled playback session with transition counts.
type Session struct {
	ID          int64  `json:"id"`
	StartedAt   int64  `json:"started_at"`
	Handle      uint64 `json:"handle"`
	Locator     string `json:"locator"`
	Backend     string `json:"backend"`
	Transitions int    `json:"transitions"`
	LastState   string `json:"last_state,omitempty"`
}

// Summary aggregates a filtered slice of the journal.
type Summary struct {
	TotalTransitions int            `json:"total_transitions"`
	Sessions         int            `json:"sessions"`
	ByState          map[string]int `json:"by_state"`
	ErrorCount       int            `json:"error_count"`
	EndedRuns        int            `json:"ended_runs"`
}

// ListTransitions returns matching transitions in delivery order
// (session, then sequence).
func ListTransitions(db *sql.DB, filter QueryFilter) ([]Transition, error) {
	if db == nil {
		return nil, fmt.Errorf("journal database is nil")
	}

	query := `
		SELECT tr.id, tr.session_id, tr.seq, tr.timestamp, tr.state,
		       tr.position_ms, tr.ended, tr.error
		FROM transitions tr`

	where, args, err := filter.whereClause(time.Now())
	if err != nil {
		return nil, err
	}
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY tr.session_id, tr.seq"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var results []Transition
	for rows.Next() {
		var t Transition
		var ended int
		var errText sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &t.Timestamp,
			&t.State, &t.PositionMS, &ended, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan transition row: %w", err)
		}
		t.Ended = ended == 1
		if errText.Valid {
			t.Error = errText.String
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transition rows: %w", err)
	}

	return results, nil
}

// ListSessions returns sessions that have matching transitions, most
// recent first.
func ListSessions(db *sql.DB, filter QueryFilter) ([]Session, error) {
	if db == nil {
		return nil, fmt.Errorf("journal database is nil")
	}

	query := `
		SELECT s.id, s.started_at, s.handle, s.locator, s.backend,
		       COUNT(tr.id) AS transitions,
		       (SELECT t2.state FROM transitions t2
		        WHERE t2.session_id = s.id
		        ORDER BY t2.seq DESC LIMIT 1) AS last_state
		FROM sessions s
		JOIN transitions tr ON tr.session_id = s.id`

	where, args, err := filter.whereClause(time.Now())
	if err != nil {
		return nil, err
	}
	if where != "" {
		query += " WHERE " + where
	}
	query += `
		GROUP BY s.id
		ORDER BY s.started_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var results []Session
	for rows.Next() {
		var s Session
		var handle int64
		var lastState sql.NullString
		if err := rows.Scan(&s.ID, &s.StartedAt, &handle, &s.Locator,
			&s.Backend, &s.Transitions, &lastState); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		s.Handle = uint64(handle)
		if lastState.Valid {
			s.LastState = lastState.String
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return results, nil
}

// Summarize aggregates counts over matching transitions.
func Summarize(db *sql.DB, filter QueryFilter) (*Summary, error) {
	if db == nil {
		return nil, fmt.Errorf("journal database is nil")
	}

	where, args, err := filter.whereClause(time.Now())
	if err != nil {
		return nil, err
	}

	totals := `
		SELECT COUNT(*),
		       COUNT(DISTINCT tr.session_id),
		       SUM(CASE WHEN tr.error IS NOT NULL THEN 1 ELSE 0 END),
		       SUM(tr.ended)
		FROM transitions tr`
	if where != "" {
		totals += " WHERE " + where
	}

	summary := &Summary{ByState: make(map[string]int)}
	var errCount, ended sql.NullInt64
	if err := db.QueryRow(totals, args...).Scan(
		&summary.TotalTransitions, &summary.Sessions, &errCount, &ended); err != nil {
		return nil, fmt.Errorf("failed to query journal summary: %w", err)
	}
	summary.ErrorCount = int(errCount.Int64)
	summary.EndedRuns = int(ended.Int64)

	byState := `
		SELECT tr.state, COUNT(*)
		FROM transitions tr`
	if where != "" {
		byState += " WHERE " + where
	}
	byState += " GROUP BY tr.state"

	rows, err := db.Query(byState, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query state distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state distribution: %w", err)
		}
		summary.ByState[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state distribution: %w", err)
	}

	return summary, nil
}
