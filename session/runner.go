package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shad0w7en/smart-youtube-bot/chatctx"
	"github.com/shad0w7en/smart-youtube-bot/config"
	"github.com/shad0w7en/smart-youtube-bot/quota"
	"github.com/shad0w7en/smart-youtube-bot/respond"
	"github.com/shad0w7en/smart-youtube-bot/telemetry"
	"github.com/shad0w7en/smart-youtube-bot/throttle"
	"github.com/shad0w7en/smart-youtube-bot/youtubeapi"
)

// ChatAPI is the transport surface a session needs. *youtubeapi.Service
// satisfies it; tests substitute fakes.
type ChatAPI interface {
	ProbeLiveVideo(ctx context.Context) (*youtubeapi.LiveVideo, error)
	FetchChatID(ctx context.Context, videoID string) (string, error)
	FetchMessages(ctx context.Context, chatID, pageToken string) (*youtubeapi.MessagePage, error)
	SendReply(ctx context.Context, chatID, text string) error
}

// AuditLog persists reply attempts and session lifecycle events. Failures
// are logged and otherwise ignored; the session never depends on the audit
// trail.
type AuditLog interface {
	RecordReply(ctx context.Context, videoID, authorID, authorName, trigger, reply string, success bool) error
	RecordSessionEvent(ctx context.Context, videoID, event, detail string) error
}

// ErrNotRunning is returned by control methods after the runner has exited.
var ErrNotRunning = errors.New("session runner not running")

// ErrNoChat is returned by Say when no live chat is attached.
var ErrNoChat = errors.New("no live chat attached")

// ErrThrottled is returned by Say when the reply throttle refuses the send.
var ErrThrottled = errors.New("reply throttled")

// Deps bundles the collaborators a Runner needs. Audit, Logger, and OnFatal
// are optional.
type Deps struct {
	Cfg       *config.Config
	API       ChatAPI
	Ledger    *quota.Ledger
	Throttle  *throttle.Throttle
	Chat      *chatctx.Context
	Responder *respond.Responder
	Audit     AuditLog
	Logger    *slog.Logger

	// LastVideoID carries the most recently attached broadcast across
	// restarts so the probe does not re-attach to a stream that just ended.
	LastVideoID string

	// OnFatal fires once when consecutive transient failures reach the
	// error threshold, the only condition that should stop the process.
	OnFatal func()
}

type workKind int

const (
	workNone workKind = iota
	workProbe
	workPoll
)

type controlKind int

const (
	ctlStop controlKind = iota
	ctlRestart
	ctlSay
)

type controlMsg struct {
	kind  controlKind
	text  string
	reply chan error
}

// Runner executes the session state machine: it owns the work timer, the
// sweep and quota-reset tickers, and all transport calls. The machine
// mutates only inside apply, under the runner's mutex, so Status may be
// served from other goroutines.
type Runner struct {
	cfg       *config.Config
	api       ChatAPI
	ledger    *quota.Ledger
	throttle  *throttle.Throttle
	chat      *chatctx.Context
	responder *respond.Responder
	audit     AuditLog
	log       *slog.Logger
	onFatal   func()
	fatalOnce sync.Once

	mu      sync.Mutex
	machine *Machine

	work    *time.Timer
	pending workKind
	control chan controlMsg
	done    chan struct{}

	now func() time.Time
	rng *rand.Rand
}

// NewRunner wires a runner around an idle machine.
func NewRunner(d Deps) *Runner {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	mcfg := Config{
		ProbeInterval:    d.Cfg.StreamCheckInterval,
		PollMinInterval:  d.Cfg.PollMinInterval,
		PollMaxBackoff:   d.Cfg.PollMaxBackoff,
		QuotaCooldown:    d.Cfg.QuotaCooldown,
		ErrorThreshold:   d.Cfg.ErrorThreshold,
		StreamHoursStart: d.Cfg.StreamHoursStart,
		StreamHoursEnd:   d.Cfg.StreamHoursEnd,
	}
	m := NewMachine(mcfg)
	m.lastVideoID = d.LastVideoID
	return &Runner{
		cfg:       d.Cfg,
		api:       d.API,
		ledger:    d.Ledger,
		throttle:  d.Throttle,
		chat:      d.Chat,
		responder: d.Responder,
		audit:     d.Audit,
		log:       d.Logger,
		onFatal:   d.OnFatal,
		machine:   m,
		control:   make(chan controlMsg),
		done:      make(chan struct{}),
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // G404: reply pacing jitter, not security sensitive
	}
}

// Start launches the runner loop in a goroutine. The loop exits when ctx is
// cancelled, after attempting the farewell.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	sweepEvery := r.cfg.ContextSweepInterval
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()
	quotaReset := time.NewTicker(time.Minute)
	defer quotaReset.Stop()

	r.work = time.NewTimer(time.Hour)
	r.disarm()
	defer r.work.Stop()

	r.log.Info("chat session starting",
		slog.String("channel", r.cfg.YTChannelID),
		slog.Duration("probe_interval", r.cfg.StreamCheckInterval))
	r.apply(ctx, func(m *Machine, now time.Time) []Command { return m.Start(now) })

	for {
		select {
		case <-ctx.Done():
			// Shutdown runs on a fresh context so the farewell still has a
			// chance to transmit.
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			r.apply(sctx, func(m *Machine, now time.Time) []Command { return m.Stop(now) })
			cancel()
			return
		case <-r.work.C:
			kind := r.pending
			r.pending = workNone
			switch kind {
			case workProbe:
				r.apply(ctx, func(m *Machine, now time.Time) []Command { return m.ProbeDue(now) })
			case workPoll:
				r.apply(ctx, func(m *Machine, now time.Time) []Command { return m.PollDue(now) })
			}
		case <-sweep.C:
			r.chat.Sweep(r.cfg.ContextMaxAge)
		case <-quotaReset.C:
			r.ledger.ResetIfDue()
		case msg := <-r.control:
			r.handleControl(ctx, msg)
		}
	}
}

// apply runs a transition under the mutex and executes the returned
// commands outside it. Transport work inside a command feeds its result
// back through another apply; that recursion is bounded because result
// transitions never emit DoProbe or DoPoll.
func (r *Runner) apply(ctx context.Context, fn func(*Machine, time.Time) []Command) {
	now := r.now()
	r.mu.Lock()
	before := r.machine.Phase()
	cmds := fn(r.machine, now)
	after := r.machine.Phase()
	errs := r.machine.ConsecutiveErrors()
	r.mu.Unlock()

	if after != before {
		r.log.Info("session phase change",
			slog.String("from", string(before)),
			slog.String("to", string(after)))
	}
	telemetry.SetSessionPhase(after.Ordinal())
	telemetry.SetConsecutiveErrors(errs)

	for _, c := range cmds {
		r.execute(ctx, c)
	}
}

func (r *Runner) execute(ctx context.Context, c Command) {
	switch c := c.(type) {
	case ScheduleProbe:
		r.arm(workProbe, c.After)
	case SchedulePoll:
		r.arm(workPoll, c.After)
	case DoProbe:
		res := r.probe(ctx)
		r.apply(ctx, func(m *Machine, now time.Time) []Command { return m.ProbeFinished(res, now) })
	case DoPoll:
		r.mu.Lock()
		videoID, chatID, cursor := r.machine.VideoID(), r.machine.ChatID(), r.machine.PageCursor()
		r.mu.Unlock()
		res := r.poll(ctx, videoID, chatID, cursor)
		r.apply(ctx, func(m *Machine, now time.Time) []Command { return m.PollFinished(res, now) })
	case ClearTimers:
		r.disarm()
	case SeedContext:
		r.seedContext(ctx, c)
	case ResetContext:
		r.chat.Reset()
		r.recordSessionEvent(ctx, "", "detached", "")
		telemetry.SetChatAttached(false)
	case SendFarewell:
		r.sendFarewell(ctx)
		r.apply(ctx, func(m *Machine, now time.Time) []Command { return m.FarewellSent(now) })
	case ReportStopped:
		r.reportStopped(ctx, c.Fatal)
	}
}

// arm schedules the single work timer; any previously pending work is
// replaced.
func (r *Runner) arm(kind workKind, after time.Duration) {
	r.disarm()
	r.pending = kind
	r.work.Reset(after)
}

func (r *Runner) disarm() {
	r.pending = workNone
	if !r.work.Stop() {
		select {
		case <-r.work.C:
		default:
		}
	}
}

func (r *Runner) seedContext(ctx context.Context, c SeedContext) {
	r.chat.Reset()
	game := respond.DetectGame(c.Title, c.Description)
	if game != "" {
		r.chat.SetGame(game)
	}
	r.chat.RecordEvent("stream_live", c.Title)
	r.log.Info("attached to live chat",
		slog.String("video_id", c.VideoID),
		slog.String("title", c.Title),
		slog.String("game", game))
	r.recordSessionEvent(ctx, c.VideoID, "attached", c.Title)
	telemetry.SetChatAttached(true)
}

func (r *Runner) reportStopped(ctx context.Context, fatal bool) {
	telemetry.SetChatAttached(false)
	if fatal {
		r.log.Error("session stopped after repeated transport failures",
			slog.Int("threshold", r.cfg.ErrorThreshold))
		r.recordSessionEvent(ctx, "", "stopped_fatal", "")
		if r.onFatal != nil {
			r.fatalOnce.Do(r.onFatal)
		}
		return
	}
	r.log.Info("session stopped")
	r.recordSessionEvent(ctx, "", "stopped", "")
}

func (r *Runner) handleControl(ctx context.Context, msg controlMsg) {
	switch msg.kind {
	case ctlStop:
		r.apply(ctx, func(m *Machine, now time.Time) []Command { return m.Stop(now) })
		if msg.reply != nil {
			msg.reply <- nil
		}
	case ctlRestart:
		r.log.Info("session restart requested")
		r.apply(ctx, func(m *Machine, now time.Time) []Command { return m.Restart(now) })
		if msg.reply != nil {
			msg.reply <- nil
		}
	case ctlSay:
		err := r.operatorSay(ctx, msg.text)
		if msg.reply != nil {
			msg.reply <- err
		}
	}
}

// operatorSay transmits operator-provided text to the attached chat. The
// owner path is subject to the same throttle and quota gates as any reply.
func (r *Runner) operatorSay(ctx context.Context, text string) error {
	r.mu.Lock()
	videoID, chatID := r.machine.VideoID(), r.machine.ChatID()
	r.mu.Unlock()
	if chatID == "" {
		return ErrNoChat
	}
	if dec := r.throttle.MayRespond(operatorKey); !dec.Allowed {
		telemetry.RepliesThrottled.Inc()
		return fmt.Errorf("%w (%s)", ErrThrottled, dec.Reason)
	}
	return r.transmit(ctx, videoID, chatID, operatorKey, "", "operator", text)
}

// Stop requests a graceful session stop. The runner parks in the stopped
// phase awaiting Restart; only the fatal path ends the process.
func (r *Runner) Stop() {
	select {
	case r.control <- controlMsg{kind: ctlStop}:
	case <-r.done:
	}
}

// Restart clears session state and re-enters the watch loop.
func (r *Runner) Restart() {
	select {
	case r.control <- controlMsg{kind: ctlRestart}:
	case <-r.done:
	}
}

// Say transmits text to the attached live chat on the operator's behalf.
func (r *Runner) Say(text string) error {
	msg := controlMsg{kind: ctlSay, text: text, reply: make(chan error, 1)}
	select {
	case r.control <- msg:
	case <-r.done:
		return ErrNotRunning
	}
	select {
	case err := <-msg.reply:
		return err
	case <-r.done:
		return ErrNotRunning
	}
}

// Done is closed when the runner loop has exited.
func (r *Runner) Done() <-chan struct{} { return r.done }

// StatusReport is the monitoring view of a session.
type StatusReport struct {
	Phase             string            `json:"phase"`
	VideoID           string            `json:"video_id,omitempty"`
	ChatID            string            `json:"chat_id,omitempty"`
	ConsecutiveErrors int               `json:"consecutive_errors"`
	UptimeSeconds     int64             `json:"uptime_seconds"`
	Quota             quota.Snapshot    `json:"quota"`
	Throttle          throttle.Snapshot `json:"throttle"`
	Chat              chatctx.Snapshot  `json:"chat"`
}

// Status assembles the current session view. Safe to call from any
// goroutine.
func (r *Runner) Status() StatusReport {
	now := r.now()
	r.mu.Lock()
	rep := StatusReport{
		Phase:             string(r.machine.Phase()),
		VideoID:           r.machine.VideoID(),
		ChatID:            r.machine.ChatID(),
		ConsecutiveErrors: r.machine.ConsecutiveErrors(),
	}
	if started := r.machine.StartedAt(); !started.IsZero() {
		rep.UptimeSeconds = int64(now.Sub(started).Seconds())
	}
	r.mu.Unlock()
	rep.Quota = r.ledger.Status()
	rep.Throttle = r.throttle.Stats()
	rep.Chat = r.chat.Snapshot()
	return rep
}

// failKindOf folds the transport error taxonomy into the machine's view.
// Authorization failures during polling behave like transients: they back
// off and, if persistent, trip the fatal threshold.
func failKindOf(err error) FailKind {
	switch youtubeapi.Classify(err) {
	case youtubeapi.ErrorClassQuota:
		return FailQuota
	case youtubeapi.ErrorClassTerminal:
		return FailTerminal
	default:
		return FailTransient
	}
}

func (r *Runner) recordSessionEvent(ctx context.Context, videoID, event, detail string) {
	if r.audit == nil {
		return
	}
	actx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.audit.RecordSessionEvent(actx, videoID, event, detail); err != nil {
		r.log.Debug("session event not recorded", slog.String("event", event), slog.Any("error", err))
	}
}
