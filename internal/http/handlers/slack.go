package handlers

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"fundcrm/internal/slack"
)

// SlackCommands receives /pipeline slash-command callbacks. The raw body is
// needed twice: once for signature verification, once for form parsing.
func (a *App) SlackCommands(w http.ResponseWriter, r *http.Request) {
	if a.Commander == nil || a.SigningSecret == "" {
		a.error(w, http.StatusServiceUnavailable, "slack_disabled", "slack integration is not configured")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	if err := slack.VerifySignature(
		a.SigningSecret,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature"),
		body,
		time.Now(),
	); err != nil {
		a.Logger.Warn().Err(err).Msg("rejected slack request")
		a.error(w, http.StatusUnauthorized, "bad_signature", "signature verification failed")
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid form payload")
		return
	}
	actor := form.Get("user_name")
	if actor == "" {
		actor = form.Get("user_id")
	}
	reply := a.Commander.Handle(r.Context(), form.Get("text"), actor)

	// Ephemeral reply, visible only to the invoking user.
	a.json(w, http.StatusOK, map[string]string{
		"response_type": "ephemeral",
		"text":          reply,
	})
}
