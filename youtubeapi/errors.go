package youtubeapi

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrorClass buckets a chat API failure by the recovery it requires.
type ErrorClass int

const (
	// ErrorClassTransient indicates a network or server fault worth retrying
	// with backoff.
	ErrorClassTransient ErrorClass = iota
	// ErrorClassTerminal indicates the broadcast ended or its chat was
	// disabled; the session should detach cleanly rather than retry.
	ErrorClassTerminal
	// ErrorClassQuota indicates the upstream daily quota or rate limit was
	// hit; polling should pause, not back off as an error.
	ErrorClassQuota
	// ErrorClassAuth indicates missing or insufficient send credentials.
	ErrorClassAuth
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassTerminal:
		return "terminal"
	case ErrorClassQuota:
		return "quota"
	case ErrorClassAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Sentinels for callers and tests that need to construct a classifiable
// failure without a live googleapi error.
var (
	ErrChatEnded    = errors.New("live chat ended")
	ErrChatDisabled = errors.New("live chat disabled")
	ErrQuota        = errors.New("api quota exceeded")
	ErrUnauthorized = errors.New("not authorized to send")
)

// Classify buckets an error returned by any of the chat API calls.
// Unrecognised errors are treated as transient so the session retries
// rather than giving up on a wording change.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorClassTransient
	case errors.Is(err, ErrChatEnded), errors.Is(err, ErrChatDisabled):
		return ErrorClassTerminal
	case errors.Is(err, ErrQuota):
		return ErrorClassQuota
	case errors.Is(err, ErrUnauthorized):
		return ErrorClassAuth
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		for _, e := range gerr.Errors {
			switch e.Reason {
			case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
				return ErrorClassQuota
			case "liveChatEnded", "liveChatDisabled", "liveChatNotFound", "liveBroadcastEnded":
				return ErrorClassTerminal
			case "forbidden", "insufficientPermissions", "insufficientLiveChatPermissions", "authError":
				return ErrorClassAuth
			}
		}
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return ErrorClassAuth
		case gerr.Code == http.StatusNotFound:
			return ErrorClassTerminal
		case gerr.Code >= 500:
			return ErrorClassTransient
		}
		return ErrorClassTransient
	}

	// Token refresh and low-level transport failures arrive as plain errors.
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "quota"):
		return ErrorClassQuota
	case strings.Contains(lower, "chat ended"), strings.Contains(lower, "chat disabled"):
		return ErrorClassTerminal
	case strings.Contains(lower, "no youtube token"), strings.Contains(lower, "invalid_grant"):
		return ErrorClassAuth
	}
	return ErrorClassTransient
}

// IsTerminal reports whether the broadcast is over or its chat is gone.
func IsTerminal(err error) bool { return err != nil && Classify(err) == ErrorClassTerminal }

// IsQuota reports whether the upstream budget or rate limit was hit.
func IsQuota(err error) bool { return err != nil && Classify(err) == ErrorClassQuota }

// IsAuth reports whether the caller lacks send credentials.
func IsAuth(err error) bool { return err != nil && Classify(err) == ErrorClassAuth }
