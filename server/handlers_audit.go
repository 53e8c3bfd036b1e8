package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dbpkg "github.com/shad0w7en/smart-youtube-bot/db"
)

// HandleReplies lists recent rows from the reply audit trail, newest first.
func (h *Handlers) HandleReplies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 50)
	store := &dbpkg.BotStore{DB: h.db}
	replies, err := store.RecentReplies(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list replies", slog.Any("err", err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if replies == nil {
		replies = []dbpkg.ReplyRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(replies)
}

// HandleEvents lists recent session lifecycle events (attached, detached,
// stopped), newest first.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 50)
	store := &dbpkg.BotStore{DB: h.db}
	events, err := store.RecentSessionEvents(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list session events", slog.Any("err", err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []dbpkg.SessionEventRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}
