package aggregate

import (
	"fmt"
	"math"
	"strings"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/score"
)

// Narrative renders the templated one-paragraph description of a summary:
// the score band, the top productive activity and the top distraction.
func Narrative(s activity.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hour %02d:00 summary - ", s.Hour())

	pct := s.ProductivityScore
	switch score.BandFor(pct) {
	case score.BandExcellent:
		fmt.Fprintf(&sb, "Excellent productivity at %d%%.", pct)
	case score.BandGood:
		fmt.Fprintf(&sb, "Good productivity at %d%%.", pct)
	case score.BandModerate:
		fmt.Fprintf(&sb, "Moderate productivity at %d%%. Consider reducing distractions.", pct)
	default:
		fmt.Fprintf(&sb, "Low productivity at %d%%. Focus on work-related tasks.", pct)
	}

	if top, ok := topWhere(s.TopActivities, true); ok {
		fmt.Fprintf(&sb, " Most productive: %s (%d mins).", top.Name, wholeMinutes(top.Minutes))
	}
	if top, ok := topWhere(s.TopActivities, false); ok {
		fmt.Fprintf(&sb, " Main distraction: %s (%d mins).", top.Name, wholeMinutes(top.Minutes))
	}
	return sb.String()
}

// topWhere returns the first record with the given productive flag. Records
// are already ordered by descending minutes.
func topWhere(recs []activity.AppRecord, productive bool) (activity.AppRecord, bool) {
	for _, r := range recs {
		if r.Productive == productive {
			return r, true
		}
	}
	return activity.AppRecord{}, false
}

func wholeMinutes(m float64) int {
	return int(math.Round(m))
}
