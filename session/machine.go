// Package session drives the bot lifecycle: watching the channel for a live
// broadcast, attaching to its chat, polling on a budgeted cadence, and
// recovering from transient, terminal, and quota failures. The state machine
// itself is pure and performs no I/O; the Runner executes the commands it
// returns.
package session

import "time"

// Phase is the orchestrator's lifecycle state.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAwaitingStream Phase = "awaiting_stream"
	PhaseChatAttached   Phase = "chat_attached"
	PhasePolling        Phase = "polling"
	PhaseBackoff        Phase = "backoff"
	PhaseStopping       Phase = "stopping"
	PhaseStopped        Phase = "stopped"
)

// Ordinal returns a stable numeric code for the phase gauge.
func (p Phase) Ordinal() int {
	switch p {
	case PhaseIdle:
		return 0
	case PhaseAwaitingStream:
		return 1
	case PhaseChatAttached:
		return 2
	case PhasePolling:
		return 3
	case PhaseBackoff:
		return 4
	case PhaseStopping:
		return 5
	case PhaseStopped:
		return 6
	}
	return -1
}

// FailKind classifies a work-cycle failure for the machine. The Runner maps
// transport errors onto these kinds; the machine never sees raw errors.
type FailKind int

const (
	FailNone FailKind = iota
	FailTransient
	FailTerminal
	FailQuota
)

// Config holds the machine's timing and threshold knobs.
type Config struct {
	ProbeInterval    time.Duration // coarse live-stream check cadence
	PollMinInterval  time.Duration
	PollMaxBackoff   time.Duration
	QuotaCooldown    time.Duration // pause when the ledger or API refuses
	ErrorThreshold   int
	StreamHoursStart int
	StreamHoursEnd   int
}

func (c Config) withDefaults() Config {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 30 * time.Minute
	}
	if c.PollMinInterval <= 0 {
		c.PollMinInterval = 10 * time.Second
	}
	if c.PollMaxBackoff <= 0 {
		c.PollMaxBackoff = 5 * time.Minute
	}
	if c.QuotaCooldown <= 0 {
		c.QuotaCooldown = time.Minute
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 5
	}
	return c
}

// Command is a side effect requested by a transition. The Runner executes
// commands in the order returned.
type Command interface{ isCommand() }

type (
	// ScheduleProbe arms the work timer for a stream probe after the delay.
	ScheduleProbe struct{ After time.Duration }
	// SchedulePoll arms the work timer for a chat poll after the delay.
	SchedulePoll struct{ After time.Duration }
	// DoProbe asks the Runner to execute one stream probe now.
	DoProbe struct{}
	// DoPoll asks the Runner to execute one chat poll now.
	DoPoll struct{}
	// ClearTimers disarms the work timer.
	ClearTimers struct{}
	// SeedContext announces a fresh attachment for game detection and the
	// event log.
	SeedContext struct{ VideoID, Title, Description string }
	// ResetContext clears the accumulated game state after a detach.
	ResetContext struct{}
	// SendFarewell asks for the best-effort goodbye reply during shutdown.
	SendFarewell struct{}
	// ReportStopped announces the terminal state. Fatal marks the
	// error-threshold path, the only condition that stops the process.
	ReportStopped struct{ Fatal bool }
)

func (ScheduleProbe) isCommand() {}
func (SchedulePoll) isCommand()  {}
func (DoProbe) isCommand()       {}
func (DoPoll) isCommand()        {}
func (ClearTimers) isCommand()   {}
func (SeedContext) isCommand()   {}
func (ResetContext) isCommand()  {}
func (SendFarewell) isCommand()  {}
func (ReportStopped) isCommand() {}

// ProbeResult reports one stream probe back to the machine: the live video
// found (if any), its chat id, and how the probe failed if it did.
type ProbeResult struct {
	VideoID     string
	Title       string
	Description string
	ChatID      string
	Fail        FailKind
}

// PollResult reports one poll cycle back to the machine. Message dispatch is
// the Runner's business; the machine only needs the cursor, the cadence
// hint, and the failure class.
type PollResult struct {
	NextCursor        string
	SuggestedInterval time.Duration
	Fail              FailKind
}

// Machine is the pure session state machine. Its methods mutate phase and
// session identifiers and return the side effects to run. It is not safe
// for concurrent use; the Runner serialises access.
type Machine struct {
	cfg Config

	phase             Phase
	videoID           string
	chatID            string
	pageCursor        string
	lastVideoID       string
	consecutiveErrors int
	startedAt         time.Time
	stoppedFatal      bool
}

// NewMachine builds an idle machine.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg.withDefaults(), phase: PhaseIdle}
}

// Start moves an idle or stopped machine toward watching for a broadcast.
// Outside the streaming-hours window the machine stays idle and re-checks
// on the coarse timer.
func (m *Machine) Start(now time.Time) []Command {
	if m.phase != PhaseIdle && m.phase != PhaseStopped {
		return nil
	}
	m.startedAt = now
	m.stoppedFatal = false
	m.consecutiveErrors = 0
	if !m.withinStreamingHours(now) {
		m.phase = PhaseIdle
		return []Command{ScheduleProbe{After: m.cfg.ProbeInterval}}
	}
	m.phase = PhaseAwaitingStream
	return []Command{ScheduleProbe{}}
}

// ProbeDue handles the probe timer firing.
func (m *Machine) ProbeDue(now time.Time) []Command {
	switch m.phase {
	case PhaseIdle, PhaseAwaitingStream:
		if !m.withinStreamingHours(now) {
			return []Command{ScheduleProbe{After: m.cfg.ProbeInterval}}
		}
		m.phase = PhaseAwaitingStream
		return []Command{DoProbe{}}
	}
	return nil
}

// ProbeFinished applies a probe outcome. Any failure, an offline channel, a
// re-sighting of the previous broadcast, or a chat-disabled video all leave
// the machine waiting for the next coarse check.
func (m *Machine) ProbeFinished(res ProbeResult, now time.Time) []Command {
	if m.phase != PhaseAwaitingStream {
		return nil
	}
	if res.Fail != FailNone || res.VideoID == "" || res.VideoID == m.lastVideoID || res.ChatID == "" {
		return []Command{ScheduleProbe{After: m.cfg.ProbeInterval}}
	}
	m.videoID = res.VideoID
	m.lastVideoID = res.VideoID
	m.chatID = res.ChatID
	m.pageCursor = ""
	m.phase = PhaseChatAttached
	return []Command{
		SeedContext{VideoID: res.VideoID, Title: res.Title, Description: res.Description},
		SchedulePoll{},
	}
}

// PollDue handles the poll timer firing. The first poll after an attach
// resets the error counter; a backoff retry is a fresh poll attempt.
func (m *Machine) PollDue(now time.Time) []Command {
	switch m.phase {
	case PhaseChatAttached:
		m.phase = PhasePolling
		m.consecutiveErrors = 0
		return []Command{DoPoll{}}
	case PhasePolling:
		return []Command{DoPoll{}}
	case PhaseBackoff:
		m.phase = PhasePolling
		return []Command{DoPoll{}}
	}
	return nil
}

// PollFinished applies a poll outcome.
func (m *Machine) PollFinished(res PollResult, now time.Time) []Command {
	if m.phase != PhasePolling {
		return nil
	}
	switch res.Fail {
	case FailNone:
		m.consecutiveErrors = 0
		m.pageCursor = res.NextCursor
		d := res.SuggestedInterval
		if d < m.cfg.PollMinInterval {
			d = m.cfg.PollMinInterval
		}
		return []Command{SchedulePoll{After: d}}
	case FailQuota:
		// Quota exhaustion is an expected condition, not an error: pause
		// the same poll without charging the error counter or leaving the
		// phase.
		return []Command{SchedulePoll{After: m.cfg.QuotaCooldown}}
	case FailTerminal:
		// Broadcast over or chat disabled: clean detach, back to watching.
		m.clearSession()
		m.phase = PhaseAwaitingStream
		return []Command{ResetContext{}, ScheduleProbe{After: m.cfg.ProbeInterval}}
	default:
		m.consecutiveErrors++
		if m.consecutiveErrors >= m.cfg.ErrorThreshold {
			return m.beginStopping(true)
		}
		m.phase = PhaseBackoff
		return []Command{SchedulePoll{After: m.backoffDelay(m.consecutiveErrors - 1)}}
	}
}

// backoffDelay doubles the minimum poll interval per prior consecutive
// failure, capped at the configured maximum.
func (m *Machine) backoffDelay(failures int) time.Duration {
	d := m.cfg.PollMinInterval
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= m.cfg.PollMaxBackoff {
			return m.cfg.PollMaxBackoff
		}
	}
	if d > m.cfg.PollMaxBackoff {
		d = m.cfg.PollMaxBackoff
	}
	return d
}

// Stop begins a requested shutdown from any active phase.
func (m *Machine) Stop(now time.Time) []Command {
	if m.phase == PhaseStopping || m.phase == PhaseStopped {
		return nil
	}
	return m.beginStopping(false)
}

// beginStopping cancels timers before anything else so no new work cycle
// can start once shutdown begins, then asks for the farewell.
func (m *Machine) beginStopping(fatal bool) []Command {
	m.stoppedFatal = fatal
	m.phase = PhaseStopping
	return []Command{ClearTimers{}, SendFarewell{}}
}

// FarewellSent completes shutdown. The farewell outcome is irrelevant;
// shutdown completes regardless.
func (m *Machine) FarewellSent(now time.Time) []Command {
	if m.phase != PhaseStopping {
		return nil
	}
	m.phase = PhaseStopped
	return []Command{ReportStopped{Fatal: m.stoppedFatal}}
}

// Restart clears timers and session identifiers and re-enters the watch
// loop without stopping the process.
func (m *Machine) Restart(now time.Time) []Command {
	m.clearSession()
	m.lastVideoID = ""
	m.consecutiveErrors = 0
	m.startedAt = now
	m.stoppedFatal = false
	m.phase = PhaseAwaitingStream
	return []Command{ClearTimers{}, ResetContext{}, ScheduleProbe{}}
}

func (m *Machine) clearSession() {
	m.videoID = ""
	m.chatID = ""
	m.pageCursor = ""
}

// withinStreamingHours reports whether now falls inside the configured
// window. A start after the end wraps past midnight; equal bounds mean
// always active.
func (m *Machine) withinStreamingHours(now time.Time) bool {
	start, end := m.cfg.StreamHoursStart, m.cfg.StreamHoursEnd
	if start == end {
		return true
	}
	h := now.Hour()
	if start < end {
		return h >= start && h <= end
	}
	return h >= start || h <= end
}

// Phase returns the current lifecycle state.
func (m *Machine) Phase() Phase { return m.phase }

// VideoID returns the attached broadcast id, if any.
func (m *Machine) VideoID() string { return m.videoID }

// ChatID returns the attached live chat id, if any.
func (m *Machine) ChatID() string { return m.chatID }

// PageCursor returns the transport pagination token for the next poll.
func (m *Machine) PageCursor() string { return m.pageCursor }

// ConsecutiveErrors returns the transient failure run length.
func (m *Machine) ConsecutiveErrors() int { return m.consecutiveErrors }

// StartedAt returns when the current session began, for uptime reporting.
func (m *Machine) StartedAt() time.Time { return m.startedAt }
