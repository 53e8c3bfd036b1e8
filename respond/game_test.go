package respond

import "testing"

func TestDetectGame(t *testing.T) {
	cases := []struct {
		name        string
		title       string
		description string
		want        string
	}{
		{
			name:  "known game in title",
			title: "Late night VALORANT ranked grind",
			want:  "Valorant",
		},
		{
			name:        "known game in description",
			title:       "Tuesday stream!",
			description: "Today we are playing Factorio with mods",
			want:        "Factorio",
		},
		{
			name:  "playing heuristic with separators",
			title: "chill stream playing Chained Echoes | !commands",
			want:  "Chained Echoes",
		},
		{
			name:  "no game",
			title: "Just Chatting with viewers",
			want:  "",
		},
		{
			name:  "case insensitive marker",
			title: "Speedrunning CELESTE any%",
			want:  "Celeste",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectGame(tc.title, tc.description); got != tc.want {
				t.Errorf("DetectGame(%q, %q) = %q, want %q", tc.title, tc.description, got, tc.want)
			}
		})
	}
}
