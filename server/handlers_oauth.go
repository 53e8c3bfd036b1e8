package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/shad0w7en/smart-youtube-bot/config"
	dbpkg "github.com/shad0w7en/smart-youtube-bot/db"
	"github.com/shad0w7en/smart-youtube-bot/youtubeapi"
)

// HandleYouTubeOAuthStart initiates the one-time OAuth consent flow for the
// bot account and redirects to Google.
func (h *Handlers) HandleYouTubeOAuthStart(w http.ResponseWriter, r *http.Request) {
	cfg, _ := config.Load() // ignore error; minimal usage
	if cfg.YTClientID == "" || cfg.YTRedirectURI == "" {
		http.Error(w, "youtube oauth not configured (need YT_CLIENT_ID + YT_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "state gen error", 500)
		return
	}
	st := hex.EncodeToString(b)
	h.addOAuthState(st, time.Now().Add(10*time.Minute))

	yts := youtubeapi.New(cfg, &dbpkg.TokenStoreAdapter{DB: h.db})
	http.Redirect(w, r, yts.AuthCodeURL(st), http.StatusFound)
}

// HandleYouTubeOAuthCallback exchanges the consent code and stores the bot
// account's token, encrypted at rest when an encryption key is configured.
func (h *Handlers) HandleYouTubeOAuthCallback(w http.ResponseWriter, r *http.Request) {
	cfg, _ := config.Load()
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", 400)
		return
	}
	if !h.consumeOAuthState(st) {
		http.Error(w, "invalid state", 400)
		return
	}

	yts := youtubeapi.New(cfg, &dbpkg.TokenStoreAdapter{DB: h.db})
	tok, err := yts.Exchange(r.Context(), code)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"expiry":                tok.Expiry,
		"access_token_present":  tok.AccessToken != "",
		"refresh_token_present": tok.RefreshToken != "",
	})
}
