package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"cueplay.click/internal/config"
	"cueplay.click/internal/journal"
)

// newAnalyzeCommand creates the analyze command for querying the
// transition journal
func newAnalyzeCommand() *cobra.Command {
	var since string
	var until string
	var state string
	var errorsOnly bool
	var limit int
	var sessionID int64
	var jsonOutput bool

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the playback transition journal",
		Long: `Analyze the playback transition journal.

Every playback session journals its state transitions (preparing,
prepared, playing, paused, error, ...) into SQLite. This command
summarizes that history and lists recent sessions, or the full
transition sequence of one session.

Examples:
  cueplay analyze                      # Summary plus recent sessions
  cueplay analyze --since yesterday    # Only recent activity
  cueplay analyze --state error        # Error transitions only
  cueplay analyze --errors-only        # Transitions carrying an error
  cueplay analyze --session 42         # One session's full sequence`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, journal.QueryFilter{
				Since:      since,
				Until:      until,
				State:      state,
				ErrorsOnly: errorsOnly,
				SessionID:  sessionID,
				Limit:      limit,
			}, jsonOutput)
		},
	}

	analyzeCmd.Flags().StringVar(&since, "since", "", "Start of time range (natural language, e.g. \"yesterday\", \"2 hours ago\")")
	analyzeCmd.Flags().StringVar(&until, "until", "", "End of time range (natural language)")
	analyzeCmd.Flags().StringVar(&state, "state", "", "Filter by state (preparing, prepared, playing, paused, error, ...)")
	analyzeCmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Only transitions carrying an error")
	analyzeCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of rows to show")
	analyzeCmd.Flags().Int64Var(&sessionID, "session", 0, "Show one session's transitions")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return analyzeCmd
}

// runAnalyze executes the analyze command
func runAnalyze(cmd *cobra.Command, filter journal.QueryFilter, jsonOutput bool) error {
	cli := cliFromContext(cmd.Context())
	if cli == nil {
		return fmt.Errorf("CLI instance not found in context")
	}

	cfg, err := loadAndValidateConfig(cmd, cli)
	if err != nil {
		return err
	}
	setupLogging(cli, cfg, cmd.ErrOrStderr())

	dbPath := cli.configManager.ResolveJournalPath(configuredJournalPath(cfg))
	slog.Debug("opening journal for analysis", "path", dbPath)

	db, err := journal.NewDatabase(dbPath)
	if err != nil {
		cmd.PrintErrf("Error opening journal: %v\n", err)
		return fmt.Errorf("error opening journal: %w", err)
	}
	defer db.Close()

	if jsonOutput {
		return printAnalysisJSON(cmd, db, filter)
	}

	summary, err := journal.Summarize(db, filter)
	if err != nil {
		cmd.PrintErrf("Error summarizing journal: %v\n", err)
		return fmt.Errorf("error summarizing journal: %w", err)
	}
	printSummary(cmd, summary)

	if filter.SessionID != 0 {
		return printSessionTransitions(cmd, db, filter)
	}
	return printSessions(cmd, db, filter)
}

// printSummary renders the aggregate counts
func printSummary(cmd *cobra.Command, summary *journal.Summary) {
	cmd.Printf("Sessions:    %d\n", summary.Sessions)
	cmd.Printf("Transitions: %d", summary.TotalTransitions)

	if len(summary.ByState) > 0 {
		states := make([]string, 0, len(summary.ByState))
		for state := range summary.ByState {
			states = append(states, state)
		}
		sort.Strings(states)

		cmd.Printf(" (")
		for i, state := range states {
			if i > 0 {
				cmd.Printf(", ")
			}
			cmd.Printf("%s: %d", state, summary.ByState[state])
		}
		cmd.Printf(")")
	}
	cmd.Printf("\n")

	cmd.Printf("Ended runs:  %d\n", summary.EndedRuns)
	cmd.Printf("Errors:      %d\n", summary.ErrorCount)
}

// printSessions renders the session table
func printSessions(cmd *cobra.Command, db *sql.DB, filter journal.QueryFilter) error {
	sessions, err := journal.ListSessions(db, filter)
	if err != nil {
		cmd.PrintErrf("Error listing sessions: %v\n", err)
		return fmt.Errorf("error listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		cmd.Println("\nNo sessions recorded.")
		return nil
	}

	cmd.Printf("\n%-6s %-20s %-10s %-12s %6s  %s\n",
		"ID", "STARTED", "BACKEND", "LAST STATE", "TRANS", "SOURCE")
	for _, s := range sessions {
		cmd.Printf("%-6d %-20s %-10s %-12s %6d  %s\n",
			s.ID,
			time.Unix(s.StartedAt, 0).Format("2006-01-02 15:04:05"),
			s.Backend,
			s.LastState,
			s.Transitions,
			s.Locator)
	}
	return nil
}

// printSessionTransitions renders one session's transition sequence
func printSessionTransitions(cmd *cobra.Command, db *sql.DB, filter journal.QueryFilter) error {
	transitions, err := journal.ListTransitions(db, filter)
	if err != nil {
		cmd.PrintErrf("Error listing transitions: %v\n", err)
		return fmt.Errorf("error listing transitions: %w", err)
	}

	if len(transitions) == 0 {
		cmd.Printf("\nNo transitions for session %d.\n", filter.SessionID)
		return nil
	}

	cmd.Printf("\n%-4s %-20s %-12s %10s %6s  %s\n",
		"SEQ", "TIMESTAMP", "STATE", "POSITION", "ENDED", "ERROR")
	for _, tr := range transitions {
		ended := ""
		if tr.Ended {
			ended = "yes"
		}
		cmd.Printf("%-4d %-20s %-12s %10s %6s  %s\n",
			tr.Seq,
			time.Unix(tr.Timestamp, 0).Format("2006-01-02 15:04:05"),
			tr.State,
			formatPosition(time.Duration(tr.PositionMS)*time.Millisecond),
			ended,
			tr.Error)
	}
	return nil
}

// printAnalysisJSON emits the summary, sessions, and (when requested)
// transitions as one JSON document
func printAnalysisJSON(cmd *cobra.Command, db *sql.DB, filter journal.QueryFilter) error {
	summary, err := journal.Summarize(db, filter)
	if err != nil {
		return fmt.Errorf("error summarizing journal: %w", err)
	}

	out := struct {
		Summary     *journal.Summary     `json:"summary"`
		Sessions    []journal.Session    `json:"sessions,omitempty"`
		Transitions []journal.Transition `json:"transitions,omitempty"`
	}{Summary: summary}

	if filter.SessionID != 0 {
		out.Transitions, err = journal.ListTransitions(db, filter)
	} else {
		out.Sessions, err = journal.ListSessions(db, filter)
	}
	if err != nil {
		return fmt.Errorf("error querying journal: %w", err)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding analysis: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// configuredJournalPath returns the configured journal database path, or empty for
// the default
func configuredJournalPath(cfg *config.Config) string {
	if cfg.Journal != nil {
		return cfg.Journal.DatabasePath
	}
	return ""
}
