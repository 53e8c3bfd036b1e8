package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"BOT_DISPLAY_NAME", "QUOTA_DAILY_LIMIT", "QUOTA_SAFE_FRACTION",
		"REPLY_GLOBAL_COOLDOWN", "POLL_MIN_INTERVAL", "STREAM_CHECK_INTERVAL",
		"ERROR_THRESHOLD", "STREAM_HOURS_START", "STREAM_HOURS_END",
	} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BotDisplayName != "StreamBot" {
		t.Errorf("BotDisplayName = %q, want StreamBot", cfg.BotDisplayName)
	}
	if cfg.QuotaDailyLimit != 10000 || cfg.QuotaSafeFraction != 0.90 {
		t.Errorf("quota defaults = %d/%f, want 10000/0.90", cfg.QuotaDailyLimit, cfg.QuotaSafeFraction)
	}
	if cfg.QuotaCostSearch != 100 || cfg.QuotaCostLookup != 1 || cfg.QuotaCostList != 5 || cfg.QuotaCostInsert != 50 {
		t.Errorf("cost defaults = %d/%d/%d/%d, want 100/1/5/50",
			cfg.QuotaCostSearch, cfg.QuotaCostLookup, cfg.QuotaCostList, cfg.QuotaCostInsert)
	}
	if cfg.ReplyGlobalCooldown != 8*time.Second || cfg.ReplyAuthorCooldown != time.Minute || cfg.ReplyHourlyCap != 30 {
		t.Errorf("throttle defaults = %v/%v/%d", cfg.ReplyGlobalCooldown, cfg.ReplyAuthorCooldown, cfg.ReplyHourlyCap)
	}
	if cfg.StreamCheckInterval != 30*time.Minute || cfg.PollMinInterval != 10*time.Second || cfg.PollMaxBackoff != 5*time.Minute {
		t.Errorf("cadence defaults = %v/%v/%v", cfg.StreamCheckInterval, cfg.PollMinInterval, cfg.PollMaxBackoff)
	}
	if cfg.ErrorThreshold != 5 {
		t.Errorf("ErrorThreshold = %d, want 5", cfg.ErrorThreshold)
	}
	if cfg.StreamHoursStart != 0 || cfg.StreamHoursEnd != 0 {
		t.Errorf("stream hours = %d/%d, want 0/0", cfg.StreamHoursStart, cfg.StreamHoursEnd)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOT_DISPLAY_NAME", "NightOwl")
	t.Setenv("QUOTA_DAILY_LIMIT", "5000")
	t.Setenv("QUOTA_SAFE_FRACTION", "0.8")
	t.Setenv("REPLY_GLOBAL_COOLDOWN", "12s")
	t.Setenv("REPLY_HOURLY_CAP", "10")
	t.Setenv("STREAM_HOURS_START", "18")
	t.Setenv("STREAM_HOURS_END", "2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BotDisplayName != "NightOwl" {
		t.Errorf("BotDisplayName = %q", cfg.BotDisplayName)
	}
	if cfg.QuotaDailyLimit != 5000 || cfg.QuotaSafeFraction != 0.8 {
		t.Errorf("quota = %d/%f", cfg.QuotaDailyLimit, cfg.QuotaSafeFraction)
	}
	if cfg.ReplyGlobalCooldown != 12*time.Second || cfg.ReplyHourlyCap != 10 {
		t.Errorf("throttle = %v/%d", cfg.ReplyGlobalCooldown, cfg.ReplyHourlyCap)
	}
	if cfg.StreamHoursStart != 18 || cfg.StreamHoursEnd != 2 {
		t.Errorf("stream hours = %d/%d, want 18/2", cfg.StreamHoursStart, cfg.StreamHoursEnd)
	}
}

func TestInvalidOptionalValuesFallBack(t *testing.T) {
	t.Setenv("QUOTA_DAILY_LIMIT", "lots")
	t.Setenv("REPLY_GLOBAL_COOLDOWN", "soon")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.QuotaDailyLimit != 10000 {
		t.Errorf("QuotaDailyLimit = %d, want default 10000", cfg.QuotaDailyLimit)
	}
	if cfg.ReplyGlobalCooldown != 8*time.Second {
		t.Errorf("ReplyGlobalCooldown = %v, want default 8s", cfg.ReplyGlobalCooldown)
	}
}

func TestStreamHoursOutOfRange(t *testing.T) {
	t.Setenv("STREAM_HOURS_START", "25")
	if _, err := Load(); err == nil {
		t.Error("Load() with STREAM_HOURS_START=25 expected error")
	}
}

func TestReplyDelayClamped(t *testing.T) {
	t.Setenv("REPLY_DELAY_MIN", "4s")
	t.Setenv("REPLY_DELAY_MAX", "2s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ReplyDelayMax != cfg.ReplyDelayMin {
		t.Errorf("ReplyDelayMax = %v, want clamped to min %v", cfg.ReplyDelayMax, cfg.ReplyDelayMin)
	}
}

func TestValidateSessionReady(t *testing.T) {
	t.Setenv("YOUTUBE_CHANNEL_ID", "UCabc")
	t.Setenv("YT_CLIENT_ID", "cid")
	t.Setenv("YT_CLIENT_SECRET", "secret")
	cfg, _ := Load()
	if err := cfg.ValidateSessionReady(); err != nil {
		t.Errorf("expected valid session config, got %v", err)
	}

	t.Setenv("YOUTUBE_CHANNEL_ID", "")
	cfg, _ = Load()
	if err := cfg.ValidateSessionReady(); err == nil {
		t.Error("expected error when YOUTUBE_CHANNEL_ID missing")
	}

	t.Setenv("YOUTUBE_CHANNEL_ID", "UCabc")
	t.Setenv("YT_CLIENT_SECRET", "")
	cfg, _ = Load()
	if err := cfg.ValidateSessionReady(); err == nil {
		t.Error("expected error when oauth secret missing")
	}
}
