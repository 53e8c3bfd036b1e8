// Package quota tracks weighted YouTube Data API unit spend against a daily
// budget and gates every outbound call before it is made.
package quota

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shad0w7en/smart-youtube-bot/telemetry"
)

// ErrBudgetSpent reports an admission refusal to callers that need an error
// value rather than a bool.
var ErrBudgetSpent = errors.New("daily quota budget spent")

// Operation identifies a costed API call kind.
type Operation string

const (
	OpSearch Operation = "search" // search.list live-stream probe
	OpLookup Operation = "lookup" // videos.list chat id lookup
	OpList   Operation = "list"   // liveChatMessages.list poll
	OpInsert Operation = "insert" // liveChatMessages.insert reply
)

// Costs holds the unit price charged per operation kind.
type Costs struct {
	Search int
	Lookup int
	List   int
	Insert int
}

// DefaultCosts mirrors the published Data API v3 unit prices for the calls
// the bot makes.
func DefaultCosts() Costs {
	return Costs{Search: 100, Lookup: 1, List: 5, Insert: 50}
}

func (c Costs) of(op Operation) int {
	switch op {
	case OpSearch:
		return c.Search
	case OpLookup:
		return c.Lookup
	case OpList:
		return c.List
	case OpInsert:
		return c.Insert
	}
	return 0
}

// historyCap bounds the diagnostic call log.
const historyCap = 100

type call struct {
	at      time.Time
	op      Operation
	cost    int
	success bool
}

// Ledger tracks unit spend for the current calendar day. The day rolls over
// at local midnight; Admit and Record both apply the rollover lazily before
// evaluating, so the ledger heals itself even when the periodic reset check
// is delayed. All methods are safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	costs   Costs
	hard    int
	safe    int
	used    int
	resetAt time.Time
	history []call

	now func() time.Time
}

// NewLedger builds a ledger with the given hard daily ceiling. The safe
// ceiling is safeFraction of the hard ceiling; admission is evaluated
// against the safe ceiling so estimation error cannot breach the hard one.
func NewLedger(dailyLimit int, safeFraction float64, costs Costs) *Ledger {
	if dailyLimit <= 0 {
		dailyLimit = 10000
	}
	if safeFraction <= 0 || safeFraction > 1 {
		safeFraction = 0.9
	}
	l := &Ledger{
		costs: costs,
		hard:  dailyLimit,
		safe:  int(float64(dailyLimit) * safeFraction),
		now:   time.Now,
	}
	l.resetAt = nextMidnight(l.now())
	return l
}

// Admit reports whether an operation of the given kind may proceed without
// pushing today's spend past the safe ceiling. Admission charges nothing;
// call Record once the outcome is known.
func (l *Ledger) Admit(op Operation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(l.now())
	cost := l.costs.of(op)
	if l.used+cost > l.safe {
		slog.Warn("quota admission refused",
			slog.String("op", string(op)),
			slog.Int("cost", cost),
			slog.Int("used", l.used),
			slog.Int("safe_ceiling", l.safe))
		if telemetry.QuotaRefusals != nil {
			telemetry.QuotaRefusals.Inc()
		}
		return false
	}
	return true
}

// Record notes the outcome of an admitted call. Successful calls are charged
// their weighted cost; failed calls append a zero-cost history entry only.
func (l *Ledger) Record(op Operation, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.rollover(now)
	cost := 0
	if success {
		cost = l.costs.of(op)
		l.used += cost
	}
	l.history = append(l.history, call{at: now, op: op, cost: cost, success: success})
	if len(l.history) > historyCap {
		l.history = l.history[len(l.history)-historyCap:]
	}
	telemetry.SetQuotaUsed(l.used)
}

// ResetIfDue applies the midnight rollover outside any admit/record call, so
// an otherwise idle ledger still resets promptly.
func (l *Ledger) ResetIfDue() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(l.now())
}

// rollover zeroes spend and history once the local day has advanced.
// Callers must hold mu.
func (l *Ledger) rollover(now time.Time) {
	if now.Before(l.resetAt) {
		return
	}
	slog.Info("quota ledger reset",
		slog.Int("used", l.used),
		slog.Time("was_due", l.resetAt))
	l.used = 0
	l.history = l.history[:0]
	l.resetAt = nextMidnight(now)
	telemetry.SetQuotaUsed(0)
}

// Snapshot is a point-in-time view of the ledger for status reporting.
type Snapshot struct {
	UsedToday   int       `json:"used_today"`
	HardCeiling int       `json:"hard_ceiling"`
	SafeCeiling int       `json:"safe_ceiling"`
	Remaining   int       `json:"remaining"`
	PercentUsed float64   `json:"percent_used"`
	ResetAt     time.Time `json:"reset_at"`
}

// Status returns the current spend. It is a pure read; a pending rollover is
// not applied here.
func (l *Ledger) Status() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	remaining := l.safe - l.used
	if remaining < 0 {
		remaining = 0
	}
	var pct float64
	if l.safe > 0 {
		pct = float64(l.used) / float64(l.safe) * 100
	}
	return Snapshot{
		UsedToday:   l.used,
		HardCeiling: l.hard,
		SafeCeiling: l.safe,
		Remaining:   remaining,
		PercentUsed: pct,
		ResetAt:     l.resetAt,
	}
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
