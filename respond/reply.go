package respond

import (
	"strings"

	"github.com/shad0w7en/smart-youtube-bot/chatctx"
)

// Reply templates by intent. {author} and {game} are substituted at
// selection time; templates that need a game are skipped when none is set.
var (
	greetingReplies = []string{
		"Welcome in, {author}!",
		"Hey {author}, glad you made it!",
		"Hi {author}! Grab a seat, {game} is on.",
	}
	farewellReplies = []string{
		"See you next time, {author}!",
		"Thanks for stopping by, {author}!",
	}
	questionReplies = []string{
		"Good question, {author}! Keep an eye on the stream for that one.",
		"{author} asking the real questions!",
	}
	thanksReplies = []string{
		"Any time, {author}!",
		"You're welcome, {author}!",
	}
	hypeReplies = []string{
		"LET'S GO!",
		"That was clean!",
		"Chat is on fire today!",
	}
	excitedExtras = []string{
		"HYPE! {game} delivering tonight!",
		"This is the run, I can feel it!",
	}
	supportiveExtras = []string{
		"We believe! Keep it up!",
		"All good, chat's got your back.",
	}
	mentionReplies = []string{
		"You called, {author}?",
		"Right here, {author}!",
	}
	farewellLines = []string{
		"That's all from me for now, thanks for hanging out everyone!",
		"Heading out, have a great rest of the stream!",
	}
)

// SelectReply picks a canned response for an analysed message, or returns
// the empty string for "do not reply". The choice varies with the intent and
// the accumulated crowd mood; the caller remains responsible for throttle
// and quota gating.
func (r *Responder) SelectReply(text, author string, a Analysis, ctx chatctx.Snapshot) string {
	if a.IsSpam {
		return ""
	}
	var pool []string
	switch a.Intent {
	case IntentGreeting:
		pool = greetingReplies
	case IntentFarewell:
		pool = farewellReplies
	case IntentQuestion:
		pool = questionReplies
	case IntentThanks:
		pool = thanksReplies
	case IntentHype:
		pool = hypeReplies
		switch ctx.Mood {
		case chatctx.MoodExcited, chatctx.MoodHyped:
			pool = append(append([]string{}, pool...), excitedExtras...)
		case chatctx.MoodSupportive:
			pool = append(append([]string{}, pool...), supportiveExtras...)
		}
	default:
		if a.RequiresResponse {
			pool = mentionReplies
		}
	}
	if len(pool) == 0 {
		return ""
	}
	reply := pool[r.rng.Intn(len(pool))]
	if strings.Contains(reply, "{game}") && ctx.Game == "" {
		reply = pool[0]
		if strings.Contains(reply, "{game}") {
			return ""
		}
	}
	return r.render(reply, author, ctx)
}

// Farewell returns the sign-off line sent on shutdown.
func (r *Responder) Farewell() string {
	return farewellLines[r.rng.Intn(len(farewellLines))]
}

func (r *Responder) render(template, author string, ctx chatctx.Snapshot) string {
	out := strings.ReplaceAll(template, "{author}", author)
	out = strings.ReplaceAll(out, "{game}", ctx.Game)
	return strings.TrimSpace(out)
}
