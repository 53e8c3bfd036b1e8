package respond

import (
	"testing"

	"github.com/shad0w7en/smart-youtube-bot/chatctx"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name          string
		text          string
		ctx           chatctx.Snapshot
		wantSentiment chatctx.Sentiment
		wantIntent    Intent
		wantGame      bool
		wantRespond   bool
		wantSpam      bool
	}{
		{
			name:          "greeting",
			text:          "hello everyone!",
			wantSentiment: chatctx.SentimentNeutral,
			wantIntent:    IntentGreeting,
			wantRespond:   true,
		},
		{
			name:          "positive game chatter",
			text:          "this boss fight is awesome",
			wantSentiment: chatctx.SentimentPositive,
			wantIntent:    IntentChatter,
			wantGame:      true,
		},
		{
			name:          "question about the game",
			text:          "how do you do that combo?",
			wantSentiment: chatctx.SentimentNeutral,
			wantIntent:    IntentQuestion,
			wantGame:      true,
			wantRespond:   true,
		},
		{
			name:          "thanks",
			text:          "thanks for the tips",
			wantSentiment: chatctx.SentimentNeutral,
			wantIntent:    IntentThanks,
			wantRespond:   true,
		},
		{
			name:          "hype",
			text:          "lets go that was insane",
			wantSentiment: chatctx.SentimentPositive,
			wantIntent:    IntentHype,
		},
		{
			name:          "complaint",
			text:          "the lag is terrible today",
			wantSentiment: chatctx.SentimentNegative,
			wantIntent:    IntentComplaint,
		},
		{
			name:          "farewell needs no reply",
			text:          "bye everyone",
			wantSentiment: chatctx.SentimentNeutral,
			wantIntent:    IntentFarewell,
		},
		{
			name:          "direct mention",
			text:          "StreamBot you there",
			wantSentiment: chatctx.SentimentNeutral,
			wantIntent:    IntentChatter,
			wantRespond:   true,
		},
		{
			name:          "chat command",
			text:          "!game Hades",
			wantSentiment: chatctx.SentimentNeutral,
			wantIntent:    IntentCommand,
			wantGame:      true,
		},
		{
			name:          "link spam",
			text:          "check out my channel https://spam.example",
			wantSentiment: chatctx.SentimentNeutral,
			wantIntent:    IntentChatter,
			wantSpam:      true,
		},
		{
			name:          "keyboard mash spam",
			text:          "aaaaaaaaaaaaah",
			wantSentiment: chatctx.SentimentNeutral,
			wantIntent:    IntentChatter,
			wantSpam:      true,
		},
		{
			name:          "current game name marks game related",
			text:          "hades is so pretty",
			ctx:           chatctx.Snapshot{Game: "Hades"},
			wantSentiment: chatctx.SentimentNeutral,
			wantIntent:    IntentChatter,
			wantGame:      true,
		},
	}

	r := New("StreamBot")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Classify(tc.text, "viewer", tc.ctx)
			if got.Sentiment != tc.wantSentiment {
				t.Errorf("sentiment = %s, want %s", got.Sentiment, tc.wantSentiment)
			}
			if got.IsSpam != tc.wantSpam {
				t.Errorf("isSpam = %v, want %v", got.IsSpam, tc.wantSpam)
			}
			if tc.wantSpam {
				return
			}
			if got.Intent != tc.wantIntent {
				t.Errorf("intent = %s, want %s", got.Intent, tc.wantIntent)
			}
			if got.GameRelated != tc.wantGame {
				t.Errorf("gameRelated = %v, want %v", got.GameRelated, tc.wantGame)
			}
			if got.RequiresResponse != tc.wantRespond {
				t.Errorf("requiresResponse = %v, want %v", got.RequiresResponse, tc.wantRespond)
			}
		})
	}
}

func TestClassifyAuthority(t *testing.T) {
	cases := []struct {
		name                       string
		owner, moderator, verified bool
		want                       Authority
	}{
		{name: "plain viewer", want: AuthorityUser},
		{name: "verified", verified: true, want: AuthorityVerified},
		{name: "moderator outranks verified", moderator: true, verified: true, want: AuthorityModerator},
		{name: "owner outranks all", owner: true, moderator: true, verified: true, want: AuthorityOwner},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyAuthority(tc.owner, tc.moderator, tc.verified); got != tc.want {
				t.Errorf("ClassifyAuthority(%v,%v,%v) = %s, want %s", tc.owner, tc.moderator, tc.verified, got, tc.want)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text     string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{text: "!status", wantName: "status", wantOK: true},
		{text: "!say hello world", wantName: "say", wantArgs: "hello world", wantOK: true},
		{text: "!GAME Elden Ring", wantName: "game", wantArgs: "Elden Ring", wantOK: true},
		{text: "  !mode winning  ", wantName: "mode", wantArgs: "winning", wantOK: true},
		{text: "hello", wantOK: false},
		{text: "!", wantOK: false},
	}
	for _, tc := range cases {
		cmd, ok := ParseCommand(tc.text)
		if ok != tc.wantOK {
			t.Errorf("ParseCommand(%q) ok = %v, want %v", tc.text, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if cmd.Name != tc.wantName || cmd.Args != tc.wantArgs {
			t.Errorf("ParseCommand(%q) = {%s %q}, want {%s %q}", tc.text, cmd.Name, cmd.Args, tc.wantName, tc.wantArgs)
		}
	}
}
