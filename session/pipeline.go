package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shad0w7en/smart-youtube-bot/chatctx"
	"github.com/shad0w7en/smart-youtube-bot/quota"
	"github.com/shad0w7en/smart-youtube-bot/respond"
	"github.com/shad0w7en/smart-youtube-bot/telemetry"
	"github.com/shad0w7en/smart-youtube-bot/youtubeapi"
)

// probe runs one stream check: search for a live broadcast, then resolve
// its chat id. Both calls are admitted against the ledger first; a refusal
// surfaces as a quota failure so the machine waits out the coarse timer.
func (r *Runner) probe(ctx context.Context) ProbeResult {
	telemetry.StreamProbes.Inc()
	ctx, span := telemetry.StartSpan(ctx, "session", "probe")
	defer span.End()
	start := r.now()
	defer func() {
		telemetry.ProbeDuration.Observe(time.Since(start).Seconds())
	}()

	if !r.ledger.Admit(quota.OpSearch) {
		return ProbeResult{Fail: FailQuota}
	}
	video, err := r.api.ProbeLiveVideo(ctx)
	r.ledger.Record(quota.OpSearch, err == nil)
	if err != nil {
		telemetry.RecordError(span, err)
		r.log.Warn("stream probe failed",
			slog.String("class", youtubeapi.Classify(err).String()),
			slog.Any("error", err))
		return ProbeResult{Fail: failKindOf(err)}
	}
	if video == nil {
		r.log.Debug("channel offline", slog.String("channel", r.cfg.YTChannelID))
		return ProbeResult{}
	}

	if !r.ledger.Admit(quota.OpLookup) {
		return ProbeResult{Fail: FailQuota}
	}
	chatID, err := r.api.FetchChatID(ctx, video.ID)
	r.ledger.Record(quota.OpLookup, err == nil)
	if err != nil {
		telemetry.RecordError(span, err)
		r.log.Warn("chat id lookup failed",
			slog.String("video_id", video.ID),
			slog.String("class", youtubeapi.Classify(err).String()),
			slog.Any("error", err))
		return ProbeResult{Fail: failKindOf(err)}
	}
	telemetry.SetSpanSuccess(span)
	return ProbeResult{
		VideoID:     video.ID,
		Title:       video.Title,
		Description: video.Description,
		ChatID:      chatID,
	}
}

// poll runs one chat fetch-and-respond cycle. An empty cursor marks the
// bootstrap poll right after an attach: its page is absorbed into the
// context accumulator but never answered, so the bot doesn't greet a
// backlog.
func (r *Runner) poll(ctx context.Context, videoID, chatID, cursor string) PollResult {
	telemetry.PollCycles.Inc()
	ctx, span := telemetry.StartSpan(ctx, "session", "poll", telemetry.VideoIDAttr(videoID))
	defer span.End()
	start := r.now()
	defer func() {
		telemetry.PollDuration.Observe(time.Since(start).Seconds())
	}()

	if !r.ledger.Admit(quota.OpList) {
		r.log.Info("poll paused, quota budget spent")
		return PollResult{Fail: FailQuota}
	}
	page, err := r.api.FetchMessages(ctx, chatID, cursor)
	r.ledger.Record(quota.OpList, err == nil)
	if err != nil {
		telemetry.PollErrors.Inc()
		telemetry.RecordError(span, err)
		class := youtubeapi.Classify(err)
		r.log.Warn("chat poll failed",
			slog.String("video_id", videoID),
			slog.String("class", class.String()),
			slog.Any("error", err))
		return PollResult{Fail: failKindOf(err)}
	}

	bootstrap := cursor == ""
	for _, msg := range page.Messages {
		if ctx.Err() != nil {
			break
		}
		r.handleMessage(ctx, videoID, chatID, msg, bootstrap)
	}
	telemetry.SetSpanSuccess(span)
	return PollResult{
		NextCursor:        page.NextPageToken,
		SuggestedInterval: page.SuggestedInterval,
	}
}

// handleMessage classifies one chat message, folds it into the context
// accumulator, and decides whether to answer. Messages are processed in
// transport order; each reply is gated by the throttle and the ledger.
func (r *Runner) handleMessage(ctx context.Context, videoID, chatID string, msg youtubeapi.ChatMessage, bootstrap bool) {
	if msg.AuthorChannelID != "" && msg.AuthorChannelID == r.cfg.BotChannelID {
		return
	}
	telemetry.MessagesSeen.Inc()

	analysis := r.responder.Classify(msg.Text, msg.AuthorName, r.chat.Snapshot())
	r.chat.RecordMessage(msg.AuthorName, analysis.Sentiment, string(analysis.Intent), analysis.GameRelated)
	if analysis.IsSpam {
		telemetry.SpamDropped.Inc()
		return
	}
	if bootstrap {
		return
	}

	if cmd, ok := respond.ParseCommand(msg.Text); ok {
		r.handleCommand(ctx, videoID, chatID, msg, cmd)
		return
	}
	if !analysis.RequiresResponse {
		return
	}

	author := authorKey(msg)
	if dec := r.throttle.MayRespond(author); !dec.Allowed {
		telemetry.RepliesThrottled.Inc()
		r.log.Debug("reply suppressed",
			slog.String("author", msg.AuthorName),
			slog.String("reason", string(dec.Reason)))
		return
	}

	reply := r.responder.SelectReply(msg.Text, msg.AuthorName, analysis, r.chat.Snapshot())
	if reply == "" {
		return
	}
	// Short randomized pause so replies don't land with machine timing.
	if !r.pause(ctx, r.replyDelay()) {
		return
	}
	if err := r.transmit(ctx, videoID, chatID, author, msg.AuthorName, string(analysis.Intent), reply); err != nil {
		return
	}
}

// handleCommand runs the in-chat moderator commands. Unauthorized or
// malformed commands are ignored silently. State changes always apply;
// the confirmation replies pass the same throttle gate as organic replies.
func (r *Runner) handleCommand(ctx context.Context, videoID, chatID string, msg youtubeapi.ChatMessage, cmd respond.ChatCommand) {
	authority := respond.ClassifyAuthority(msg.IsOwner, msg.IsModerator, msg.IsVerified)
	elevated := authority == respond.AuthorityOwner || authority == respond.AuthorityModerator

	reply := func(trigger, text string) {
		if dec := r.throttle.MayRespond(authorKey(msg)); !dec.Allowed {
			telemetry.RepliesThrottled.Inc()
			r.log.Debug("command reply suppressed",
				slog.String("command", cmd.Name),
				slog.String("reason", string(dec.Reason)))
			return
		}
		_ = r.transmit(ctx, videoID, chatID, authorKey(msg), msg.AuthorName, trigger, text)
	}

	switch cmd.Name {
	case "status":
		if !elevated {
			return
		}
		q := r.ledger.Status()
		snap := r.chat.Snapshot()
		reply("command:status", fmt.Sprintf("quota %d/%d units (%.0f%%), mood %s, %d messages tracked",
			q.UsedToday, q.SafeCeiling, q.PercentUsed, snap.Mood, snap.MessageCount))
	case "say":
		if authority != respond.AuthorityOwner || cmd.Args == "" {
			return
		}
		reply("command:say", cmd.Args)
	case "game":
		if !elevated || cmd.Args == "" {
			return
		}
		r.chat.SetGame(cmd.Args)
		r.chat.RecordEvent("game_change", cmd.Args)
		reply("command:game", "Now playing: "+cmd.Args)
	case "mode":
		if !elevated {
			return
		}
		if state, ok := chatctx.ParseGameState(cmd.Args); ok {
			r.chat.SetGameState(state)
			r.chat.RecordEvent("game_state", string(state))
		}
	}
}

// transmit sends one chat message: ledger admission, the API call, charge
// on success, throttle bookkeeping, and the best-effort audit row (written
// for failed attempts too). A denied authorization drops the reply without
// retry.
func (r *Runner) transmit(ctx context.Context, videoID, chatID, author, authorName, trigger, text string) error {
	if !r.ledger.Admit(quota.OpInsert) {
		return quota.ErrBudgetSpent
	}
	err := r.api.SendReply(ctx, chatID, text)
	r.ledger.Record(quota.OpInsert, err == nil)
	if r.audit != nil {
		actx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if aerr := r.audit.RecordReply(actx, videoID, author, authorName, trigger, text, err == nil); aerr != nil {
			r.log.Debug("reply not recorded", slog.Any("error", aerr))
		}
	}
	if err != nil {
		telemetry.RepliesFailed.Inc()
		if youtubeapi.Classify(err) == youtubeapi.ErrorClassAuth {
			r.log.Warn("reply dropped, send credentials rejected", slog.Any("error", err))
		} else {
			r.log.Warn("reply send failed",
				slog.String("trigger", trigger),
				slog.Any("error", err))
		}
		return err
	}
	telemetry.RepliesSent.Inc()
	r.throttle.RecordReply(author)
	r.log.Info("reply sent",
		slog.String("author", authorName),
		slog.String("trigger", trigger),
		slog.Int("length", len(text)))
	return nil
}

// sendFarewell attempts the one best-effort goodbye during shutdown,
// subject to the usual throttle and quota gates. Failures are swallowed;
// shutdown completes regardless.
func (r *Runner) sendFarewell(ctx context.Context) {
	r.mu.Lock()
	videoID, chatID := r.machine.VideoID(), r.machine.ChatID()
	r.mu.Unlock()
	if chatID == "" {
		return
	}
	if dec := r.throttle.MayRespond(""); !dec.Allowed {
		r.log.Debug("farewell suppressed", slog.String("reason", string(dec.Reason)))
		return
	}
	_ = r.transmit(ctx, videoID, chatID, "", "", "farewell", r.responder.Farewell())
}

// replyDelay picks the human-like pause before a reply.
func (r *Runner) replyDelay() time.Duration {
	min, max := r.cfg.ReplyDelayMin, r.cfg.ReplyDelayMax
	if max <= min {
		return min
	}
	return min + time.Duration(r.rng.Int63n(int64(max-min)))
}

// pause waits for d unless the context ends first.
func (r *Runner) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// operatorKey is the throttle identity for replies the operator triggers
// over HTTP; it shares the global cooldown and hourly cap with chat replies.
const operatorKey = "operator"

func authorKey(msg youtubeapi.ChatMessage) string {
	if msg.AuthorChannelID != "" {
		return msg.AuthorChannelID
	}
	return msg.AuthorName
}
