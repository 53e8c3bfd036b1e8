package respond

import "strings"

// knownGames maps lowercase markers found in stream titles to a canonical
// label. Ordered so the first marker present wins; checked before the looser
// "playing X" heuristic.
var knownGames = []struct{ marker, label string }{
	{"minecraft", "Minecraft"},
	{"fortnite", "Fortnite"},
	{"valorant", "Valorant"},
	{"league of legends", "League of Legends"},
	{"elden ring", "Elden Ring"},
	{"dark souls", "Dark Souls"},
	{"hades", "Hades"},
	{"celeste", "Celeste"},
	{"stardew", "Stardew Valley"},
	{"terraria", "Terraria"},
	{"apex", "Apex Legends"},
	{"overwatch", "Overwatch"},
	{"counter-strike", "Counter-Strike"},
	{"cs2", "Counter-Strike 2"},
	{"rocket league", "Rocket League"},
	{"grand theft auto", "Grand Theft Auto"},
	{"gta", "Grand Theft Auto"},
	{"zelda", "Zelda"},
	{"mario kart", "Mario Kart"},
	{"pokemon", "Pokemon"},
	{"baldur's gate", "Baldur's Gate 3"},
	{"among us", "Among Us"},
	{"hollow knight", "Hollow Knight"},
	{"slay the spire", "Slay the Spire"},
	{"factorio", "Factorio"},
	{"satisfactory", "Satisfactory"},
}

// DetectGame extracts a game label from a stream title and description.
// Returns the empty string when nothing recognisable is found.
func DetectGame(title, description string) string {
	for _, text := range []string{title, description} {
		lower := strings.ToLower(text)
		for _, g := range knownGames {
			if strings.Contains(lower, g.marker) {
				return g.label
			}
		}
	}
	if label := playingHeuristic(title); label != "" {
		return label
	}
	return playingHeuristic(description)
}

// playingHeuristic picks up "playing <something>" phrasing and trims the
// remainder at the usual title separators.
func playingHeuristic(text string) string {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, "playing ")
	if idx < 0 {
		return ""
	}
	rest := text[idx+len("playing "):]
	if cut := strings.IndexAny(rest, "|!,([#"); cut >= 0 {
		rest = rest[:cut]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || len(rest) > 60 {
		return ""
	}
	return rest
}
