package journal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// QueryFilter is the common filter shape for journal queries. Since and
// Until accept natural language ("yesterday", "2 hours ago"); explicit
// StartTime/EndTime take precedence over them.
type QueryFilter struct {
	StartTime *time.Time // inclusive lower bound
	EndTime   *time.Time // exclusive upper bound
	Since     string     // natural-language lower bound
	Until     string     // natural-language upper bound

	State      string // filter by state name ("playing", "error", ...)
	ErrorsOnly bool   // only transitions carrying an error
	SessionID  int64  // filter by session, 0 = all

	Limit  int
	Offset int
}

// ParseNaturalDate parses a natural language date relative to now.
func ParseNaturalDate(input string, now time.Time) (time.Time, error) {
	result, err := naturaldate.Parse(input, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		slog.Warn("failed to parse natural date", "input", input, "error", err)
		return time.Time{}, fmt.Errorf("failed to parse natural date %q: %w", input, err)
	}

	slog.Debug("parsed natural date", "input", input, "result", result)
	return result, nil
}

// timeBounds resolves the filter's time options into Unix seconds. Zero
// start means no lower bound.
func (q *QueryFilter) timeBounds(now time.Time) (startUnix, endUnix int64, err error) {
	endUnix = now.Unix()

	start := q.StartTime
	end := q.EndTime

	if start == nil && q.Since != "" {
		t, perr := ParseNaturalDate(q.Since, now)
		if perr != nil {
			return 0, 0, perr
		}
		start = &t
	}
	if end == nil && q.Until != "" {
		t, perr := ParseNaturalDate(q.Until, now)
		if perr != nil {
			return 0, 0, perr
		}
		end = &t
	}

	if start != nil {
		startUnix = start.Unix()
	}
	if end != nil {
		endUnix = end.Unix()
	}
	return startUnix, endUnix, nil
}

// whereClause builds the SQL WHERE fragment and arguments for the
// filter, against the aliased transitions table "tr".
func (q *QueryFilter) whereClause(now time.Time) (string, []any, error) {
	var clauses []string
	var args []any

	if q.StartTime != nil || q.EndTime != nil || q.Since != "" || q.Until != "" {
		startUnix, endUnix, err := q.timeBounds(now)
		if err != nil {
			return "", nil, err
		}
		if startUnix > 0 {
			clauses = append(clauses, "tr.timestamp >= ?")
			args = append(args, startUnix)
		}
		clauses = append(clauses, "tr.timestamp <= ?")
		args = append(args, endUnix)
	}

	if q.State != "" {
		clauses = append(clauses, "tr.state = ?")
		args = append(args, q.State)
	}

	if q.ErrorsOnly {
		clauses = append(clauses, "tr.error IS NOT NULL")
	}

	if q.SessionID != 0 {
		clauses = append(clauses, "tr.session_id = ?")
		args = append(args, q.SessionID)
	}

	where := ""
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	slog.Debug("built journal where clause", "clause", where, "arg_count", len(args))
	return where, args, nil
}
