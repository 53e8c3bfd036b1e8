package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shad0w7en/smart-youtube-bot/quota"
	"github.com/shad0w7en/smart-youtube-bot/session"
)

// HandleControlStop parks the session in the stopped phase after the usual
// farewell. The process keeps running; use /control/restart to resume.
func (h *Handlers) HandleControlStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slog.Info("operator stop requested", slog.String("remote_addr", r.RemoteAddr))
	h.bot.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

// HandleControlRestart clears session state and re-enters the stream watch
// loop. Also the operator's escape hatch when the bot refuses to re-attach
// to a broadcast it saw end.
func (h *Handlers) HandleControlRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slog.Info("operator restart requested", slog.String("remote_addr", r.RemoteAddr))
	h.bot.Restart()
	writeJSON(w, http.StatusOK, map[string]string{"status": "restarting"})
}

// HandleControlSay transmits operator text to the attached live chat.
func (h *Handlers) HandleControlSay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	body.Text = strings.TrimSpace(body.Text)
	if body.Text == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}

	switch err := h.bot.Say(body.Text); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	case errors.Is(err, session.ErrNoChat):
		http.Error(w, "no live chat attached", http.StatusConflict)
	case errors.Is(err, session.ErrNotRunning):
		http.Error(w, "session not running", http.StatusServiceUnavailable)
	case errors.Is(err, session.ErrThrottled):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, quota.ErrBudgetSpent):
		http.Error(w, "daily quota budget spent", http.StatusTooManyRequests)
	default:
		slog.Warn("operator say failed", slog.Any("err", err))
		http.Error(w, "send failed: "+err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
