package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/worktrack/internal/activity"
	"github.com/blackwell-systems/worktrack/internal/classify"
	"github.com/blackwell-systems/worktrack/internal/output"
	"github.com/blackwell-systems/worktrack/internal/score"
)

var classifyCmd = &cobra.Command{
	Use:   "classify NAME...",
	Short: "Show how application or site names are categorised",
	Long: `Classify each argument the way a tracking session would and print the
category, confidence and scoring multiplier. Arguments that look like a
URL or host are classified as websites.

Examples:
  worktrack classify github.com "Visual Studio Code" netflix.com
  worktrack classify --json randomsite.xyz`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

// classifyRow is one classified name.
type classifyRow struct {
	Name       string            `json:"name"`
	Kind       activity.Kind     `json:"type"`
	Category   activity.Category `json:"category"`
	Productive bool              `json:"productive"`
	Confidence float64           `json:"confidence"`
	Multiplier float64           `json:"multiplier"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	if flagNoColor {
		output.SetNoColor(true)
	}

	rows := classifyNames(args)
	if flagJSON {
		return writeJSON(rows)
	}

	tbl := output.NewTable("Name", "Type", "Category", "Confidence", "Multiplier").AlignRight(3, 4)
	for _, r := range rows {
		tbl.AddRow(r.Name, string(r.Kind), output.CategoryLabel(r.Category),
			fmt.Sprintf("%.1f", r.Confidence), fmt.Sprintf("%.1f", r.Multiplier))
	}
	tbl.Print()
	return nil
}

func classifyNames(names []string) []classifyRow {
	rows := make([]classifyRow, 0, len(names))
	for _, name := range names {
		obs := observationFor(name)
		c := classify.Classify(obs)
		rows = append(rows, classifyRow{
			Name:       name,
			Kind:       obs.Kind,
			Category:   c.Category,
			Productive: c.Productive,
			Confidence: c.Confidence,
			Multiplier: score.Multiplier(c.Category),
		})
	}
	return rows
}

// observationFor guesses the observation kind from the shape of name.
func observationFor(name string) activity.Observation {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "://") || (strings.Contains(lower, ".") && !strings.Contains(lower, " ")) {
		return activity.Observation{Kind: activity.KindWebsite, Name: name, URL: name}
	}
	return activity.Observation{Kind: activity.KindApplication, Name: name}
}
