// Package respond holds the pure message-understanding rules: sentiment and
// intent classification, spam and game detection, authority levels, and
// canned reply selection. Nothing here performs I/O or keeps chat state.
package respond

import (
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/shad0w7en/smart-youtube-bot/chatctx"
)

// Intent is the coarse purpose of a chat message.
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentFarewell  Intent = "farewell"
	IntentQuestion  Intent = "question"
	IntentThanks    Intent = "thanks"
	IntentHype      Intent = "hype"
	IntentComplaint Intent = "complaint"
	IntentCommand   Intent = "command"
	IntentChatter   Intent = "chatter"
)

// Analysis is the classification result for one message.
type Analysis struct {
	Sentiment        chatctx.Sentiment
	Intent           Intent
	GameRelated      bool
	RequiresResponse bool
	IsSpam           bool
}

// Responder bundles the classification and reply-selection rules with the
// little configuration they need. Safe for use from a single goroutine.
type Responder struct {
	botName string
	rng     *rand.Rand
}

// New builds a Responder that recognises direct mentions of botName.
func New(botName string) *Responder {
	return &Responder{
		botName: strings.ToLower(strings.TrimSpace(botName)),
		//nolint:gosec // G404: reply variety does not need cryptographic randomness
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var positiveWords = map[string]bool{
	"love": true, "awesome": true, "amazing": true, "great": true, "nice": true,
	"cool": true, "insane": true, "sick": true, "pog": true, "poggers": true,
	"gg": true, "hype": true, "lfg": true, "w": true, "goat": true, "cracked": true,
	"clutch": true, "fire": true, "best": true, "fun": true,
}

var negativeWords = map[string]bool{
	"hate": true, "bad": true, "boring": true, "trash": true, "awful": true,
	"terrible": true, "worst": true, "lag": true, "laggy": true, "rip": true,
	"sad": true, "l": true, "wtf": true, "annoying": true, "sucks": true,
	"choke": true, "choked": true, "throw": true, "threw": true,
}

var positivePhrases = []string{"lets go", "let's go", "well played", "so good"}
var negativePhrases = []string{"so bad", "this sucks", "fell off"}

var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true, "sup": true,
	"hiya": true, "howdy": true, "heya": true,
}

var farewellWords = map[string]bool{
	"bye": true, "goodbye": true, "gn": true, "goodnight": true, "cya": true,
	"later": true, "night": true,
}

var thanksMarkers = []string{"thank", "thx", "tysm"}

var gameWords = map[string]bool{
	"game": true, "level": true, "boss": true, "play": true, "playing": true,
	"build": true, "loadout": true, "map": true, "round": true, "match": true,
	"speedrun": true, "strat": true, "strats": true, "combo": true, "run": true,
	"quest": true, "raid": true, "rank": true, "ranked": true, "aim": true,
}

var spamMarkers = []string{
	"http://", "https://", "www.", ".com/", "sub4sub", "sub 4 sub",
	"follow4follow", "check out my channel", "free gift card", "free robux",
	"free vbucks", "promo code", "earn money fast",
}

// Classify derives sentiment, intent, and response need for one message.
// It is deterministic and performs no I/O.
func (r *Responder) Classify(text, author string, ctx chatctx.Snapshot) Analysis {
	lower := strings.ToLower(strings.TrimSpace(text))
	tokens := tokenize(lower)

	a := Analysis{
		Sentiment: scoreSentiment(lower, tokens),
		Intent:    IntentChatter,
	}
	a.IsSpam = looksLikeSpam(lower)
	if a.IsSpam {
		return a
	}

	mentioned := r.botName != "" && strings.Contains(lower, r.botName)

	switch {
	case strings.HasPrefix(lower, "!"):
		a.Intent = IntentCommand
	case containsAny(tokens, greetingWords):
		a.Intent = IntentGreeting
	case containsAny(tokens, farewellWords):
		a.Intent = IntentFarewell
	case strings.Contains(lower, "?"):
		a.Intent = IntentQuestion
	case hasMarker(lower, thanksMarkers) || tokens["thanks"] || tokens["ty"]:
		a.Intent = IntentThanks
	case a.Sentiment == chatctx.SentimentPositive && (tokens["pog"] || tokens["poggers"] || tokens["hype"] || tokens["lfg"] || hasMarker(lower, positivePhrases)):
		a.Intent = IntentHype
	case a.Sentiment == chatctx.SentimentNegative && (tokens["lag"] || tokens["laggy"] || tokens["boring"] || tokens["sucks"]):
		a.Intent = IntentComplaint
	}

	a.GameRelated = isGameRelated(lower, tokens, ctx.Game)

	switch a.Intent {
	case IntentGreeting, IntentQuestion, IntentThanks:
		a.RequiresResponse = true
	default:
		a.RequiresResponse = mentioned
	}
	return a
}

func tokenize(lower string) map[string]bool {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
	tokens := make(map[string]bool, len(fields))
	for _, f := range fields {
		tokens[f] = true
	}
	return tokens
}

func scoreSentiment(lower string, tokens map[string]bool) chatctx.Sentiment {
	var pos, neg int
	for w := range tokens {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	for _, p := range positivePhrases {
		if strings.Contains(lower, p) {
			pos++
		}
	}
	for _, p := range negativePhrases {
		if strings.Contains(lower, p) {
			neg++
		}
	}
	switch {
	case pos > neg:
		return chatctx.SentimentPositive
	case neg > pos:
		return chatctx.SentimentNegative
	}
	return chatctx.SentimentNeutral
}

func isGameRelated(lower string, tokens map[string]bool, game string) bool {
	if containsAny(tokens, gameWords) {
		return true
	}
	if game == "" {
		return false
	}
	return strings.Contains(lower, strings.ToLower(game))
}

func looksLikeSpam(lower string) bool {
	if hasMarker(lower, spamMarkers) {
		return true
	}
	return longestRun(lower) >= 12
}

// longestRun returns the length of the longest run of one repeated rune.
func longestRun(s string) int {
	var best, run int
	var prev rune
	for _, r := range s {
		if r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > best {
			best = run
		}
	}
	return best
}

func containsAny(tokens map[string]bool, set map[string]bool) bool {
	for w := range set {
		if tokens[w] {
			return true
		}
	}
	return false
}

func hasMarker(lower string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Authority is a chat participant's command privilege level.
type Authority string

const (
	AuthorityUser      Authority = "user"
	AuthorityVerified  Authority = "verified"
	AuthorityModerator Authority = "moderator"
	AuthorityOwner     Authority = "owner"
)

// ClassifyAuthority maps author flags, highest privilege first.
func ClassifyAuthority(isOwner, isModerator, isVerified bool) Authority {
	switch {
	case isOwner:
		return AuthorityOwner
	case isModerator:
		return AuthorityModerator
	case isVerified:
		return AuthorityVerified
	}
	return AuthorityUser
}

// ChatCommand is an in-chat "!" directive.
type ChatCommand struct {
	Name string
	Args string
}

// ParseCommand splits a "!" prefixed chat line into its name and argument
// remainder. Returns false for ordinary chatter.
func ParseCommand(text string) (ChatCommand, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || !strings.HasPrefix(text, "!") {
		return ChatCommand{}, false
	}
	name, args, _ := strings.Cut(text[1:], " ")
	return ChatCommand{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}, true
}
