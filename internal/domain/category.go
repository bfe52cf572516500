package domain

// Mode identifies the game difficulty a leaderboard belongs to.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeHard   Mode = "hard"
)

// Window identifies the time scope of a leaderboard.
type Window string

const (
	WindowAllTime Window = "allTime"
	WindowDaily   Window = "daily"
)

// Category identifies one leaderboard and resolves its storage key.
type Category struct {
	Mode   Mode
	Window Window
}

// Categories lists every leaderboard the service maintains.
var Categories = []Category{
	{ModeNormal, WindowAllTime},
	{ModeNormal, WindowDaily},
	{ModeHard, WindowAllTime},
	{ModeHard, WindowDaily},
}

// ID returns a stable identifier used for routing keys, audit rows and
// WebSocket subscriptions.
func (c Category) ID() string {
	window := "alltime"
	if c.Window == WindowDaily {
		window = "daily"
	}
	return string(c.Mode) + "-" + window
}

// Valid reports whether the category is one of the known leaderboards.
func (c Category) Valid() bool {
	return (c.Mode == ModeNormal || c.Mode == ModeHard) &&
		(c.Window == WindowAllTime || c.Window == WindowDaily)
}

// Cap returns the maximum number of entries retained in storage. The hard
// all-time board keeps the legacy 100-entry cap; everything else keeps 10.
func (c Category) Cap() int {
	if c.Mode == ModeHard && c.Window == WindowAllTime {
		return 100
	}
	return 10
}

// BlobKey resolves the storage key for the category. Daily boards are keyed
// by the current UTC date (YYYY-MM-DD), so a new day starts an empty board.
func (c Category) BlobKey(day string) string {
	switch {
	case c.Mode == ModeHard && c.Window == WindowDaily:
		return "hard-daily-scores-" + day + ".json"
	case c.Mode == ModeHard:
		return "hardHighscores.json"
	case c.Window == WindowDaily:
		return "daily-scores-" + day + ".json"
	default:
		return "highscores.json"
	}
}

// LegacyBlobKey returns the pre-migration single-blob key for the hard
// daily board, or "" for categories that never had one. The legacy blob
// holds every day's records in one array filtered by date at read time.
func (c Category) LegacyBlobKey() string {
	if c.Mode == ModeHard && c.Window == WindowDaily {
		return "hardDailyHighscores.json"
	}
	return ""
}

// UsesLegacyDateField reports whether stored records carry their creation
// time in the legacy "date" field instead of "timestamp".
func (c Category) UsesLegacyDateField() bool {
	return c.Mode == ModeHard && c.Window == WindowAllTime
}
