package journal

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cueplay.click/internal/backend"
	"cueplay.click/internal/media"
	"cueplay.click/internal/player"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	// File-backed so every pooled connection sees the same database.
	db, err := NewDatabase(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertSession(t *testing.T, db *sql.DB, startedAt int64, locator string) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO sessions (started_at, handle, locator, backend)
		VALUES (?, ?, ?, ?)`, startedAt, 1, locator, "stub")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func insertTransition(t *testing.T, db *sql.DB, session int64, seq int, ts int64, state string, errText any) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO transitions (session_id, seq, timestamp, state, position_ms, ended, error)
		VALUES (?, ?, ?, ?, 0, 0, ?)`, session, seq, ts, state, errText)
	require.NoError(t, err)
}

func TestSchemaConstraints(t *testing.T) {
	db := openTestDB(t)
	session := insertSession(t, db, time.Now().Unix(), "click.mp3")

	// seq must be positive.
	_, err := db.Exec(`
		INSERT INTO transitions (session_id, seq, timestamp, state, position_ms, ended, error)
		VALUES (?, 0, 1, 'prepared', 0, 0, NULL)`, session)
	require.Error(t, err)

	// ended is boolean.
	_, err = db.Exec(`
		INSERT INTO transitions (session_id, seq, timestamp, state, position_ms, ended, error)
		VALUES (?, 1, 1, 'prepared', 0, 2, NULL)`, session)
	require.Error(t, err)

	// (session, seq) is unique.
	insertTransition(t, db, session, 1, 1, "preparing", nil)
	_, err = db.Exec(`
		INSERT INTO transitions (session_id, seq, timestamp, state, position_ms, ended, error)
		VALUES (?, 1, 2, 'prepared', 0, 0, NULL)`, session)
	require.Error(t, err)

	// transitions must reference a session.
	_, err = db.Exec(`
		INSERT INTO transitions (session_id, seq, timestamp, state, position_ms, ended, error)
		VALUES (99999, 1, 1, 'prepared', 0, 0, NULL)`)
	require.Error(t, err)
}

func TestRecorderJournalsControllerTransitions(t *testing.T) {
	db := openTestDB(t)

	stub := backend.NewStub()
	defer stub.Close()
	stub.SetClip("click.mp3", backend.StubClip{Duration: 1500 * time.Millisecond, Channels: 2})

	ctrl := player.New(stub, media.File("click.mp3"))
	rec, unsub, err := Attach(db, ctrl, "stub")
	require.NoError(t, err)
	defer unsub()

	ctrl.Prepare()

	rows, err := ListTransitions(db, QueryFilter{SessionID: rec.SessionID()})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "preparing", rows[0].State)
	require.Equal(t, 1, rows[0].Seq)
	require.Equal(t, "prepared", rows[1].State)
	require.Equal(t, 2, rows[1].Seq)
	require.Empty(t, rows[1].Error)

	sessions, err := ListSessions(db, QueryFilter{SessionID: rec.SessionID()})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "click.mp3", sessions[0].Locator)
	require.Equal(t, "stub", sessions[0].Backend)
	require.Equal(t, uint64(ctrl.Handle()), sessions[0].Handle)
	require.Equal(t, "prepared", sessions[0].LastState)
}

func TestRecorderJournalsPrepareError(t *testing.T) {
	db := openTestDB(t)

	stub := backend.NewStub()
	defer stub.Close()
	stub.SetClip("broken.mp3", backend.StubClip{Duration: time.Second, Channels: 1})
	stub.SetPrepareError("broken.mp3", errors.New("codec unavailable"))

	ctrl := player.New(stub, media.File("broken.mp3"))
	rec, unsub, err := Attach(db, ctrl, "stub")
	require.NoError(t, err)
	defer unsub()

	ctrl.Prepare()

	rows, err := ListTransitions(db, QueryFilter{SessionID: rec.SessionID()})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "preparing", rows[0].State)
	require.Equal(t, "error", rows[1].State)
	require.Equal(t, "codec unavailable", rows[1].Error)
	require.Equal(t, "prepared", rows[2].State)
	require.Empty(t, rows[2].Error, "only the error transition carries the error")

	errorsOnly, err := ListTransitions(db, QueryFilter{ErrorsOnly: true})
	require.NoError(t, err)
	require.Len(t, errorsOnly, 1)
	require.Equal(t, "error", errorsOnly[0].State)
}

func TestRecorderDisablesOnWriteFailure(t *testing.T) {
	db := openTestDB(t)

	stub := backend.NewStub()
	defer stub.Close()
	ctrl := player.New(stub, media.File("click.mp3"))

	rec, unsub, err := Attach(db, ctrl, "stub")
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, db.Close())

	// Writes fail against the closed handle; the recorder degrades
	// instead of breaking the dispatch.
	ctrl.Prepare()
	require.True(t, rec.Disabled())
	require.True(t, ctrl.IsLoaded(), "playback is unaffected by journal failure")
}

func TestQueryFilterStateAndSession(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().Unix()

	a := insertSession(t, db, now, "a.mp3")
	b := insertSession(t, db, now, "b.mp3")
	insertTransition(t, db, a, 1, now, "preparing", nil)
	insertTransition(t, db, a, 2, now, "prepared", nil)
	insertTransition(t, db, a, 3, now, "playing", nil)
	insertTransition(t, db, b, 1, now, "preparing", nil)
	insertTransition(t, db, b, 2, now, "error", "boom")

	playing, err := ListTransitions(db, QueryFilter{State: "playing"})
	require.NoError(t, err)
	require.Len(t, playing, 1)
	require.Equal(t, a, playing[0].SessionID)

	onlyB, err := ListTransitions(db, QueryFilter{SessionID: b})
	require.NoError(t, err)
	require.Len(t, onlyB, 2)

	limited, err := ListTransitions(db, QueryFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, 1, limited[0].Seq)
	require.Equal(t, 2, limited[1].Seq)
}

func TestQueryFilterTimeBounds(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	s := insertSession(t, db, now.Unix(), "a.mp3")
	old := now.Add(-48 * time.Hour).Unix()
	insertTransition(t, db, s, 1, old, "prepared", nil)
	insertTransition(t, db, s, 2, now.Unix(), "playing", nil)

	start := now.Add(-time.Hour)
	recent, err := ListTransitions(db, QueryFilter{StartTime: &start})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "playing", recent[0].State)

	since, err := ListTransitions(db, QueryFilter{Since: "yesterday"})
	require.NoError(t, err)
	require.Len(t, since, 1)

	_, err = ListTransitions(db, QueryFilter{Since: "not a date at all zzz"})
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().Unix()

	a := insertSession(t, db, now, "a.mp3")
	b := insertSession(t, db, now, "b.mp3")
	insertTransition(t, db, a, 1, now, "preparing", nil)
	insertTransition(t, db, a, 2, now, "prepared", nil)
	insertTransition(t, db, a, 3, now, "playing", nil)
	insertTransition(t, db, a, 4, now, "playing", nil)
	insertTransition(t, db, b, 1, now, "error", "boom")
	_, err := db.Exec(`
		INSERT INTO transitions (session_id, seq, timestamp, state, position_ms, ended, error)
		VALUES (?, 2, ?, 'prepared', 0, 1, NULL)`, b, now)
	require.NoError(t, err)

	summary, err := Summarize(db, QueryFilter{})
	require.NoError(t, err)
	require.Equal(t, 6, summary.TotalTransitions)
	require.Equal(t, 2, summary.Sessions)
	require.Equal(t, 2, summary.ByState["playing"])
	require.Equal(t, 2, summary.ByState["prepared"])
	require.Equal(t, 1, summary.ErrorCount)
	require.Equal(t, 1, summary.EndedRuns)

	empty, err := Summarize(db, QueryFilter{State: "seeking"})
	require.NoError(t, err)
	require.Equal(t, 0, empty.TotalTransitions)
}
