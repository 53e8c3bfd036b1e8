// Package chatctx accumulates a bounded view of recent chat activity: the
// rolling message history, stream events, the active game, and a crowd mood
// derived from recent sentiment. It is pure state with no I/O.
package chatctx

import (
	"strings"
	"sync"
	"time"
)

// Sentiment labels a classified chat message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Mood is the derived crowd mood. It is never set directly; RecordMessage
// recomputes it from the sentiment of the most recent messages.
type Mood string

const (
	MoodNeutral    Mood = "neutral"
	MoodExcited    Mood = "excited"
	MoodFrustrated Mood = "frustrated"
	MoodSupportive Mood = "supportive"
	MoodHyped      Mood = "hyped"
)

// GameState describes what the broadcaster appears to be doing.
type GameState string

const (
	GameUnknown    GameState = "unknown"
	GamePlaying    GameState = "playing"
	GameWinning    GameState = "winning"
	GameStruggling GameState = "struggling"
	GameIntense    GameState = "intense"
	GameMenu       GameState = "menu"
)

// ParseGameState maps a state word to a GameState, for the moderator
// command path.
func ParseGameState(s string) (GameState, bool) {
	switch st := GameState(strings.ToLower(strings.TrimSpace(s))); st {
	case GamePlaying, GameWinning, GameStruggling, GameIntense, GameMenu:
		return st, true
	}
	return GameUnknown, false
}

const (
	messageCap = 100
	eventCap   = 50
	moodSample = 10
)

// Message is one classified chat message in the rolling history.
type Message struct {
	At          time.Time
	Author      string
	Sentiment   Sentiment
	Intent      string
	GameRelated bool
}

// Event is one noteworthy session occurrence (attach, detach, command, ...).
type Event struct {
	At      time.Time
	Type    string
	Payload string
}

// Context holds the accumulated state. All methods are safe for concurrent
// use.
type Context struct {
	mu       sync.Mutex
	game     string
	state    GameState
	mood     Mood
	messages []Message
	events   []Event

	now func() time.Time
}

// New returns an empty accumulator.
func New() *Context {
	return &Context{
		state: GameUnknown,
		mood:  MoodNeutral,
		now:   time.Now,
	}
}

// RecordEvent appends to the event history, evicting the oldest entry past
// the count cap.
func (c *Context) RecordEvent(eventType, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{At: c.now(), Type: eventType, Payload: payload})
	if len(c.events) > eventCap {
		c.events = c.events[len(c.events)-eventCap:]
	}
}

// RecordMessage appends to the message history under the same eviction rule
// and recomputes the crowd mood from the most recent entries.
func (c *Context) RecordMessage(author string, sentiment Sentiment, intent string, gameRelated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{
		At:          c.now(),
		Author:      author,
		Sentiment:   sentiment,
		Intent:      intent,
		GameRelated: gameRelated,
	})
	if len(c.messages) > messageCap {
		c.messages = c.messages[len(c.messages)-messageCap:]
	}
	c.recomputeMood()
}

// recomputeMood derives the mood from the sentiment distribution of the last
// ten messages. Callers must hold mu.
func (c *Context) recomputeMood() {
	start := len(c.messages) - moodSample
	if start < 0 {
		start = 0
	}
	var pos, neg int
	for _, m := range c.messages[start:] {
		switch m.Sentiment {
		case SentimentPositive:
			pos++
		case SentimentNegative:
			neg++
		}
	}
	switch {
	case pos >= 6:
		c.mood = MoodExcited
	case neg >= 6:
		c.mood = MoodFrustrated
	case pos >= 4:
		c.mood = MoodSupportive
	default:
		c.mood = MoodNeutral
	}
}

// Sweep drops entries older than maxAge from both histories. The count caps
// and the age bound apply independently.
func (c *Context) Sweep(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-maxAge)
	i := 0
	for i < len(c.messages) && !c.messages[i].At.After(cutoff) {
		i++
	}
	if i > 0 {
		c.messages = c.messages[i:]
	}
	j := 0
	for j < len(c.events) && !c.events[j].At.After(cutoff) {
		j++
	}
	if j > 0 {
		c.events = c.events[j:]
	}
}

// Reset clears the game fields to their initial values. Used when a
// broadcast ends; the message and event histories age out via Sweep instead.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.game = ""
	c.state = GameUnknown
}

// SetGame records the detected or operator-supplied game label. A non-empty
// label moves an unknown game state to playing; an empty label clears it.
func (c *Context) SetGame(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.game = label
	if label == "" {
		c.state = GameUnknown
	} else if c.state == GameUnknown {
		c.state = GamePlaying
	}
}

// SetGameState overrides the game state, for the moderator command path.
func (c *Context) SetGameState(state GameState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// Snapshot is a point-in-time view for status reporting and reply selection.
type Snapshot struct {
	Game         string    `json:"game,omitempty"`
	GameState    GameState `json:"game_state"`
	Mood         Mood      `json:"mood"`
	MessageCount int       `json:"message_count"`
	EventCount   int       `json:"event_count"`
}

// Snapshot returns the current accumulated view.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Game:         c.game,
		GameState:    c.state,
		Mood:         c.mood,
		MessageCount: len(c.messages),
		EventCount:   len(c.events),
	}
}
