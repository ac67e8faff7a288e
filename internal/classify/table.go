package classify

import "github.com/blackwell-systems/worktrack/internal/activity"

// Tier is one ordered list of substrings that map to a category.
type Tier struct {
	Name       string
	Confidence float64
	Patterns   []Pattern
}

// Pattern maps a lower-case substring to a category.
type Pattern struct {
	Match    string
	Category activity.Category
}

// Confidence tiers, highest first.
const (
	ConfidenceListed    = 0.9
	ConfidenceHeuristic = 0.7
	ConfidenceNeutral   = 0.5
	ConfidenceUnknown   = 0.3
)

func patterns(cat activity.Category, matches ...string) []Pattern {
	out := make([]Pattern, len(matches))
	for i, m := range matches {
		out[i] = Pattern{Match: m, Category: cat}
	}
	return out
}

// Rules is the default lookup table. Tiers are checked in order so a
// productive match always wins over an incidental unproductive substring.
var Rules = []Tier{
	{
		Name:       "productive",
		Confidence: ConfidenceListed,
		Patterns: patterns(activity.CategoryProductive,
			// editors and IDEs
			"vscode", "visual studio", "code", "sublime", "atom", "intellij", "goland",
			"pycharm", "eclipse", "xcode", "vim", "emacs",
			// developer tooling and sites
			"terminal", "iterm", "powershell", "github", "gitlab", "bitbucket", "git",
			"stackoverflow.com", "postman", "insomnia", "swagger", "docker", "kubernetes",
			// communication used for work
			"slack", "teams", "zoom", "meet", "webex",
			// docs and notes
			"notion", "evernote", "onenote", "obsidian", "roam", "docs.google.com",
			"confluence", "jira", "word", "docs", "pages",
			// design
			"figma", "sketch", "adobe xd", "invision", "framer",
			// spreadsheets and analysis
			"excel", "sheets", "numbers", "tableau", "powerbi",
			// planning
			"trello", "asana", "clickup", "monday", "linear", "calendar",
			// mail
			"outlook", "gmail", "thunderbird", "mail",
		),
	},
	{
		Name:       "unproductive",
		Confidence: ConfidenceListed,
		Patterns: append(
			patterns(activity.CategorySocial,
				"facebook", "twitter", "instagram", "tiktok", "snapchat", "youtube",
				"reddit", "linkedin", "tumblr", "quora", "medium.com",
				"whatsapp", "telegram", "wechat", "signal",
			),
			patterns(activity.CategoryEntertainment,
				"netflix", "hulu", "disney+", "prime video", "spotify", "apple music",
				"pandora", "soundcloud", "twitch", "steam", "epic games", "battle.net",
				"games", "discord", "pinterest", "imgur", "9gag", "buzzfeed",
				"amazon", "ebay", "etsy",
				"candy crush", "solitaire", "minesweeper",
			)...,
		),
	},
	{
		Name:       "neutral",
		Confidence: ConfidenceNeutral,
		Patterns: patterns(activity.CategoryNeutral,
			"finder", "explorer", "file manager", "desktop", "system preferences",
			"settings", "preferences", "calculator", "notes", "textedit", "notepad",
			"screenshot", "camera", "photos", "gallery", "weather", "clock", "reminders",
		),
	},
}

// BrowserHints are keywords that suggest general web work when no list matches.
var BrowserHints = []string{
	"browser", "web", "chrome", "chromium", "firefox", "safari", "brave", "microsoft edge", "opera",
}
