package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/worktrack/internal/output"
	"github.com/blackwell-systems/worktrack/internal/store"
)

var (
	historyDays     int
	historyLimit    int
	historySessions bool
	historyDetail   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled bucket summaries and sessions",
	Long: `Show the bucket summaries recorded by previous tracking sessions,
newest first, with the score change against the bucket before each one.

Examples:
  worktrack history                 # summaries from the last 7 days
  worktrack history --days 1 -d     # today's buckets with their activity tables
  worktrack history --sessions      # tracking sessions instead of buckets`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyDays, "days", 7, "Number of days to look back")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 24, "Maximum rows to display")
	historyCmd.Flags().BoolVar(&historySessions, "sessions", false, "List tracking sessions")
	historyCmd.Flags().BoolVarP(&historyDetail, "detail", "d", false, "Render each summary in full")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()
	if historySessions {
		sessions, err := db.ListSessions(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if flagJSON {
			return writeJSON(sessions)
		}
		renderSessions(sessions)
		return nil
	}

	since := time.Now().AddDate(0, 0, -historyDays)
	rows, err := db.ListSummaries(ctx, since, historyLimit)
	if err != nil {
		return fmt.Errorf("listing summaries: %w", err)
	}
	if flagJSON {
		return writeJSON(rows)
	}
	renderHistory(rows)
	return nil
}

// renderHistory prints summaries newest first. Each score is compared with
// the next older row.
func renderHistory(rows []store.SummaryRow) {
	fmt.Println(output.Section("History"))
	fmt.Println()
	if len(rows) == 0 {
		fmt.Println(" No summaries recorded yet. Run 'worktrack track' to start a session.")
		return
	}

	if historyDetail {
		for _, r := range rows {
			fmt.Print(output.RenderSummary(r.Summary))
			fmt.Println()
		}
		return
	}

	tbl := output.NewTable("Bucket", "Score", "Trend", "Active", "Productive", "Top activity").AlignRight(1, 3, 4)
	for i, r := range rows {
		s := r.Summary
		trend := output.StyleMuted.Render("─")
		if i+1 < len(rows) {
			trend = output.ScoreTrend(s.ProductivityScore - rows[i+1].Summary.ProductivityScore)
		}
		top := "-"
		if len(s.TopActivities) > 0 {
			top = s.TopActivities[0].Name
		}
		tbl.AddRow(
			s.BucketStart.Format("Mon 01-02 15:04"),
			fmt.Sprintf("%d", s.ProductivityScore),
			trend,
			fmt.Sprintf("%.0fm", s.ActiveMinutes),
			fmt.Sprintf("%.0fm", s.ProductiveMinutes),
			top,
		)
	}
	tbl.Print()
}

func renderSessions(rows []store.SessionRow) {
	fmt.Println(output.Section("Sessions"))
	fmt.Println()
	if len(rows) == 0 {
		fmt.Println(" No sessions recorded yet.")
		return
	}

	tbl := output.NewTable("Started", "Ended", "User", "Active", "Idle", "Score").AlignRight(3, 4, 5)
	for _, r := range rows {
		ended := output.StyleWarning.Render("running")
		if !r.EndedAt.IsZero() {
			ended = r.EndedAt.Format("15:04")
		}
		tbl.AddRow(
			r.StartedAt.Format("Mon 01-02 15:04"),
			ended,
			r.UserID,
			output.FormatDuration(r.Active),
			output.FormatDuration(r.Idle),
			fmt.Sprintf("%d", r.Score),
		)
	}
	tbl.Print()
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
