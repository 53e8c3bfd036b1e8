package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/shad0w7en/smart-youtube-bot/config"
	dbpkg "github.com/shad0w7en/smart-youtube-bot/db"
)

// safeConfigKeys are the tunables exposed over /config. Secrets and
// credentials are never served here.
var safeConfigKeys = map[string]bool{
	"LOG_LEVEL":              true,
	"LOG_FORMAT":             true,
	"STREAM_CHECK_INTERVAL":  true,
	"POLL_MIN_INTERVAL":      true,
	"POLL_MAX_BACKOFF":       true,
	"QUOTA_COOLDOWN":         true,
	"QUOTA_SAFE_FRACTION":    true,
	"ERROR_THRESHOLD":        true,
	"REPLY_GLOBAL_COOLDOWN":  true,
	"REPLY_AUTHOR_COOLDOWN":  true,
	"REPLY_HOURLY_CAP":       true,
	"REPLY_DELAY_MIN":        true,
	"REPLY_DELAY_MAX":        true,
	"STREAM_HOURS_START":     true,
	"STREAM_HOURS_END":       true,
	"CONTEXT_SWEEP_INTERVAL": true,
	"CONTEXT_MAX_AGE":        true,
}

// ApplyConfigOverrides copies stored cfg: overrides into the process
// environment so subsequent config.Load calls observe them. Runs once at
// startup after the database is reachable; a PUT to /config therefore
// takes effect on the next restart. Returns the number of keys applied.
func ApplyConfigOverrides(ctx context.Context, db *sql.DB) int {
	applied := 0
	for k := range safeConfigKeys {
		var v string
		err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=$1`, "cfg:"+k).Scan(&v)
		if err != nil || v == "" {
			continue
		}
		if os.Setenv(k, v) == nil {
			applied++
		}
	}
	return applied
}

// HandleConfig handles GET and PUT requests for safe configuration keys.
// Overrides land in the kv table under a cfg: prefix and win over env on
// the next restart.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		out := map[string]string{}
		for k := range safeConfigKeys {
			var v string
			_ = h.db.QueryRowContext(r.Context(), `SELECT value FROM kv WHERE key=$1`, "cfg:"+k).Scan(&v)
			if v == "" {
				v = os.Getenv(k)
			}
			if v != "" {
				out[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPut:
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", 400)
			return
		}
		for k, v := range body {
			if !safeConfigKeys[k] {
				continue
			}
			if _, err := h.db.ExecContext(
				r.Context(),
				`INSERT INTO kv (key,value,updated_at) VALUES ($1,$2,NOW()) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
				"cfg:"+k,
				strings.TrimSpace(v),
			); err != nil {
				slog.Error("failed to update config", slog.String("key", k), slog.Any("err", err))
				http.Error(w, "failed to update config", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleStatus returns the session view plus a little channel and audit
// context.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	cfg, _ := config.Load()

	resp := map[string]any{
		"bot_name":   cfg.BotDisplayName,
		"channel_id": cfg.YTChannelID,
		"session":    h.bot.Status(),
	}

	var repliesRecorded int
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bot_replies`).Scan(&repliesRecorded)
	resp["replies_recorded"] = repliesRecorded

	store := &dbpkg.BotStore{DB: h.db}
	if last, err := store.LastAttachedVideo(ctx); err == nil && last != "" {
		resp["last_attached_video"] = last
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
