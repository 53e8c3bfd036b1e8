// Package throttle paces outbound chat replies with a global minimum
// spacing, a per-author cooldown, and a rolling hourly cap.
package throttle

import (
	"sync"
	"time"

	"github.com/shad0w7en/smart-youtube-bot/telemetry"
)

// Reason explains a denied reply.
type Reason string

const (
	ReasonGlobalCooldown Reason = "global_cooldown"
	ReasonHourlyLimit    Reason = "hourly_limit"
	ReasonAuthorCooldown Reason = "author_cooldown"
)

// hourlyWindow is the trailing window the reply cap applies to. It slides
// with the query instant rather than aligning to clock hours, so bursts are
// smoothed across hour boundaries.
const hourlyWindow = time.Hour

// Decision is the outcome of a MayRespond check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Throttle gates reply sends. All methods are safe for concurrent use.
type Throttle struct {
	mu             sync.Mutex
	globalCooldown time.Duration
	authorCooldown time.Duration
	hourlyCap      int

	lastGlobal time.Time
	perAuthor  map[string]time.Time
	hourly     []time.Time

	now func() time.Time
}

// New builds a throttle. Non-positive arguments fall back to the defaults
// of 8s global spacing, 60s author cooldown, and 30 replies per hour.
func New(globalCooldown, authorCooldown time.Duration, hourlyCap int) *Throttle {
	if globalCooldown <= 0 {
		globalCooldown = 8 * time.Second
	}
	if authorCooldown <= 0 {
		authorCooldown = time.Minute
	}
	if hourlyCap <= 0 {
		hourlyCap = 30
	}
	return &Throttle{
		globalCooldown: globalCooldown,
		authorCooldown: authorCooldown,
		hourlyCap:      hourlyCap,
		perAuthor:      make(map[string]time.Time),
		now:            time.Now,
	}
}

// MayRespond reports whether a reply to the given author may be sent now.
// All three gates are evaluated against the same instant; the reason names
// the first failing gate.
func (t *Throttle) MayRespond(authorID string) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.prune(now)
	if !t.lastGlobal.IsZero() && now.Sub(t.lastGlobal) < t.globalCooldown {
		return Decision{Reason: ReasonGlobalCooldown}
	}
	if len(t.hourly) >= t.hourlyCap {
		return Decision{Reason: ReasonHourlyLimit}
	}
	if last, ok := t.perAuthor[authorID]; ok && now.Sub(last) < t.authorCooldown {
		return Decision{Reason: ReasonAuthorCooldown}
	}
	return Decision{Allowed: true}
}

// RecordReply marks a delivered reply against all three trackers.
func (t *Throttle) RecordReply(authorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.lastGlobal = now
	t.perAuthor[authorID] = now
	t.hourly = append(t.hourly, now)
	t.prune(now)
	telemetry.SetHourlyReplies(len(t.hourly))
}

// prune drops hourly entries older than the trailing window and author
// entries whose cooldown has lapsed. Callers must hold mu.
func (t *Throttle) prune(now time.Time) {
	cutoff := now.Add(-hourlyWindow)
	i := 0
	for i < len(t.hourly) && !t.hourly[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.hourly = t.hourly[i:]
	}
	for id, last := range t.perAuthor {
		if now.Sub(last) >= t.authorCooldown {
			delete(t.perAuthor, id)
		}
	}
}

// Snapshot is a point-in-time view of the throttle for status reporting.
type Snapshot struct {
	HourlyCount      int   `json:"hourly_count"`
	HourlyCap        int   `json:"hourly_cap"`
	ActiveAuthors    int   `json:"active_authors"`
	GlobalCooldownMs int64 `json:"global_cooldown_ms"`
	AuthorCooldownMs int64 `json:"author_cooldown_ms"`
}

// Stats returns current counters. The hourly window is re-pruned relative
// to now before counting.
func (t *Throttle) Stats() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(t.now())
	return Snapshot{
		HourlyCount:      len(t.hourly),
		HourlyCap:        t.hourlyCap,
		ActiveAuthors:    len(t.perAuthor),
		GlobalCooldownMs: t.globalCooldown.Milliseconds(),
		AuthorCooldownMs: t.authorCooldown.Milliseconds(),
	}
}
