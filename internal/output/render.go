package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// FormatDuration renders d as "1h05m", "12m" or "45s".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

// CategoryLabel renders a styled category name.
func CategoryLabel(cat activity.Category) string {
	return CategoryStyle(cat).Render(string(cat))
}

// RenderStatus renders the one-screen live view of a session.
func RenderStatus(snap activity.Snapshot) string {
	var sb strings.Builder

	state := StyleSuccess.Render("active")
	if snap.Idle {
		state = StyleWarning.Render("idle")
	}
	if !snap.EndTime.IsZero() {
		state = StyleMuted.Render("stopped")
	}

	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("State"), state)
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("Productivity"), ScoreBar(snap.ProductivityScore, 20))
	fmt.Fprintf(&sb, " %s %s %s\n", StyleLabel.Render("Active"),
		StyleValue.Render(FormatDuration(snap.TotalActive)),
		StyleMuted.Render(fmt.Sprintf("(%.1fh)", snap.ActiveHours())))
	fmt.Fprintf(&sb, " %s %s %s\n", StyleLabel.Render("Idle"),
		StyleValue.Render(FormatDuration(snap.TotalIdle)),
		StyleMuted.Render(fmt.Sprintf("(%.1fh)", snap.IdleHours())))

	if snap.Current != nil {
		name := snap.Current.Name
		if name == "" {
			name = string(snap.Current.Kind)
		}
		fmt.Fprintf(&sb, " %s %s %s\n", StyleLabel.Render("Current"),
			StyleBold.Render(name), CategoryLabel(snap.Current.Category))
	}

	if len(snap.TopActivities) > 0 {
		sb.WriteString(Section("This bucket"))
		sb.WriteString("\n")
		sb.WriteString(activityTable(snap.TopActivities).Render())
	}
	return sb.String()
}

// RenderSummary renders one closed bucket.
func RenderSummary(s activity.Summary) string {
	var sb strings.Builder
	title := fmt.Sprintf("%s - %s", s.BucketStart.Format("Mon 15:04"), s.BucketEnd.Format("15:04"))
	sb.WriteString(Section(title))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("Score"), ScoreBar(s.ProductivityScore, 20))
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("Productive"), StyleValue.Render(fmt.Sprintf("%.0f min", s.ProductiveMinutes)))
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("Unproductive"), StyleValue.Render(fmt.Sprintf("%.0f min", s.UnproductiveMinutes)))
	fmt.Fprintf(&sb, " %s %s\n", StyleLabel.Render("Idle"), StyleValue.Render(fmt.Sprintf("%.0f min", s.IdleMinutes)))
	if len(s.TopActivities) > 0 {
		sb.WriteString("\n")
		sb.WriteString(activityTable(s.TopActivities).Render())
	}
	fmt.Fprintf(&sb, "\n %s\n", StyleMuted.Render(s.Narrative))
	return sb.String()
}

func activityTable(recs []activity.AppRecord) *Table {
	tbl := NewTable("Activity", "Minutes", "Category", "Confidence").AlignRight(1, 3)
	for _, r := range recs {
		tbl.AddRow(r.Name, fmt.Sprintf("%.1f", r.Minutes), CategoryLabel(r.Category), fmt.Sprintf("%.1f", r.Confidence))
	}
	return tbl
}
