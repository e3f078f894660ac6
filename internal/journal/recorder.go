package journal

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"cueplay.click/internal/player"
)

// Recorder writes one controller's transitions into the journal. It is
// attached through the controller's subscription hub, so it observes
// exactly the fan-out a caller-facing subscriber would, in the same
// order. A write failure disables the recorder; playback continues
// unjournaled.
type Recorder struct {
	db        *sql.DB
	sessionID int64

	mu       sync.Mutex
	seq      int
	disabled bool
}

// NewRecorder inserts the session row for a controller and returns the
// recorder for it.
func NewRecorder(db *sql.DB, c *player.Controller, backend string) (*Recorder, error) {
	res, err := db.Exec(`
		INSERT INTO sessions (started_at, handle, locator, backend)
		VALUES (?, ?, ?, ?)`,
		time.Now().Unix(),
		int64(c.Handle()),
		c.Locator(),
		backend)
	if err != nil {
		return nil, err
	}

	sessionID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	slog.Debug("journal session started",
		"session_id", sessionID,
		"handle", uint64(c.Handle()),
		"locator", c.Locator())

	return &Recorder{db: db, sessionID: sessionID}, nil
}

// Attach creates a recorder for the controller and subscribes it.
// Returns the recorder and the unsubscribe func.
func Attach(db *sql.DB, c *player.Controller, backend string) (*Recorder, func(), error) {
	rec, err := NewRecorder(db, c, backend)
	if err != nil {
		return nil, nil, err
	}
	unsub := c.Subscribe(rec.Record)
	return rec, unsub, nil
}

// SessionID reports the session row the recorder writes under.
func (r *Recorder) SessionID() int64 {
	return r.sessionID
}

// Record journals one transition. It is the subscription callback shape
// expected by Controller.Subscribe.
func (r *Recorder) Record(ch player.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disabled {
		return
	}

	r.seq++

	var errText any
	if ch.Err != nil {
		errText = ch.Err.Error()
	}
	ended := 0
	if ch.Ended {
		ended = 1
	}
	pos := ch.Position.Milliseconds()
	if pos < 0 {
		pos = 0
	}

	_, err := r.db.Exec(`
		INSERT INTO transitions (session_id, seq, timestamp, state, position_ms, ended, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.sessionID,
		r.seq,
		time.Now().Unix(),
		ch.State.String(),
		pos,
		ended,
		errText)
	if err != nil {
		slog.Warn("journal write failed, disabling recorder",
			"session_id", r.sessionID,
			"seq", r.seq,
			"error", err)
		r.disabled = true
		return
	}

	slog.Debug("journal transition recorded",
		"session_id", r.sessionID,
		"seq", r.seq,
		"state", ch.State.String(),
		"position_ms", pos,
		"ended", ch.Ended)
}

// Disabled reports whether a write failure has stopped the recorder.
func (r *Recorder) Disabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}
