package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/blackwell-systems/worktrack/internal/score"
)

// ScoreBar renders a 0-100 productivity score as a bar coloured by band.
// Example: "████████░░ 80/100"
func ScoreBar(value, width int) string {
	if width <= 0 {
		width = 20
	}
	value = max(0, min(100, value))
	filled := value * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %s", bandStyle(score.BandFor(value)).Render(bar),
		StyleMuted.Render(fmt.Sprintf("%d/100", value)))
}

func bandStyle(b score.Band) lipgloss.Style {
	switch b {
	case score.BandExcellent, score.BandGood:
		return StyleSuccess
	case score.BandModerate:
		return StyleWarning
	default:
		return StyleError
	}
}

// ScoreTrend renders the change between two consecutive bucket scores.
func ScoreTrend(delta int) string {
	switch {
	case delta > 0:
		return StyleSuccess.Render(fmt.Sprintf("▲ +%d", delta))
	case delta < 0:
		return StyleError.Render(fmt.Sprintf("▼ %d", delta))
	default:
		return StyleMuted.Render("─")
	}
}

// Section returns a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}
