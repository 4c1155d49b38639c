// Package httpapi exposes the connection lifecycle and sync surface over
// HTTP: the OAuth redirect pair, the provider webhook endpoint and the
// manual sync trigger.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driving"
	"github.com/agendo/calsync/internal/logger"
)

// Notification correlation headers sent by the provider.
const (
	headerChannelID     = "X-Goog-Channel-ID"
	headerResourceID    = "X-Goog-Resource-ID"
	headerResourceState = "X-Goog-Resource-State"
)

// Server wires the driving ports to HTTP routes.
type Server struct {
	auth       driving.AuthFlow
	engine     driving.SyncEngine
	agenda     driving.Agenda
	dispatcher driving.WebhookDispatcher

	// defaultOrigin is where callback redirects land when the state
	// carries no origin of its own.
	defaultOrigin string
}

// NewServer creates an HTTP server over the given ports.
func NewServer(auth driving.AuthFlow, engine driving.SyncEngine, agenda driving.Agenda, dispatcher driving.WebhookDispatcher, defaultOrigin string) *Server {
	return &Server{
		auth:          auth,
		engine:        engine,
		agenda:        agenda,
		dispatcher:    dispatcher,
		defaultOrigin: defaultOrigin,
	}
}

// Routes returns the route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/google", s.handleAuthStart)
	mux.HandleFunc("GET /auth/google/callback", s.handleAuthCallback)
	mux.HandleFunc("POST /webhooks/google", s.handleWebhook)
	mux.HandleFunc("POST /sync/{user}", s.handleManualSync)
	mux.HandleFunc("GET /events/{user}", s.handleEvents)
	mux.HandleFunc("POST /disconnect/{user}", s.handleDisconnect)
	return mux
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	origin := r.URL.Query().Get("origin")
	if origin == "" {
		origin = s.defaultOrigin
	}
	http.Redirect(w, r, s.auth.AuthorizeURL(userID, origin), http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		logger.Warn("OAuth callback carried error: %s", errParam)
		s.redirectBack(w, r, s.defaultOrigin, "calendar_error", errParam)
		return
	}

	result, err := s.auth.HandleCallback(r.Context(), query.Get("state"), query.Get("code"))
	if err != nil {
		logger.Error("OAuth callback failed: %v", err)
		s.redirectBack(w, r, s.defaultOrigin, "calendar_error", "connection_failed")
		return
	}

	origin := result.Origin
	if origin == "" {
		origin = s.defaultOrigin
	}
	s.redirectBack(w, r, origin, "calendar_connected", "true")
}

// handleWebhook acknowledges every notification that passes validation,
// whatever happens downstream; a non-success answer would teach the
// provider to disable the channel.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	n := domain.Notification{
		ChannelID:     r.Header.Get(headerChannelID),
		ResourceID:    r.Header.Get(headerResourceID),
		ResourceState: r.Header.Get(headerResourceState),
	}

	outcome, err := s.dispatcher.Receive(r.Context(), n)
	if outcome == domain.DispatchRejected {
		logger.Warn("Rejected webhook notification: %v", err)
		writeError(w, http.StatusBadRequest, "invalid notification")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleManualSync(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	result, err := s.engine.ManualSync(r.Context(), userID)
	switch {
	case errors.Is(err, domain.ErrSyncTooSoon):
		writeError(w, http.StatusTooManyRequests, "sync was requested too recently, try again later")
		return
	case errors.Is(err, domain.ErrNotConnected):
		writeError(w, http.StatusConflict, "calendar is not connected")
		return
	case err != nil:
		logger.Error("Manual sync failed for %s: %v", userID, err)
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"imported": result.Imported,
		"updated":  result.Updated,
		"deleted":  result.Deleted,
		"skipped":  result.Skipped,
		"full":     result.FullSync,
		"errors":   result.Errors,
	})
}

// handleEvents answers the local window query: stored rows plus virtual
// occurrences expanded from recurring masters.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	from, to, err := occurrenceWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occs, err := s.agenda.Occurrences(r.Context(), userID, from, to)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid query window")
		return
	case err != nil:
		logger.Error("Event query failed for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "event query failed")
		return
	}

	items := make([]map[string]any, 0, len(occs))
	for _, o := range occs {
		items = append(items, map[string]any{
			"id":        o.Event.ID,
			"parent_id": o.ParentID,
			"title":     o.Event.Title,
			"starts_at": o.Event.StartsAt.Format(time.RFC3339),
			"ends_at":   o.Event.EndsAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": items})
}

// occurrenceWindow parses the optional from/to query parameters,
// defaulting to the seven days ahead of now.
func occurrenceWindow(fromParam, toParam string) (time.Time, time.Time, error) {
	from := time.Now()
	if fromParam != "" {
		parsed, err := time.Parse(time.RFC3339, fromParam)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from value")
		}
		from = parsed
	}
	to := from.AddDate(0, 0, 7)
	if toParam != "" {
		parsed, err := time.Parse(time.RFC3339, toParam)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to value")
		}
		to = parsed
	}
	return from, to, nil
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	err := s.auth.Disconnect(r.Context(), userID)
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		writeError(w, http.StatusConflict, "calendar is not connected")
		return
	case err != nil:
		logger.Error("Disconnect failed for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "disconnect failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"disconnected": true})
}

// redirectBack sends the browser to the frontend origin with an outcome
// query parameter. With no origin at all, a plain text answer has to do.
func (s *Server) redirectBack(w http.ResponseWriter, r *http.Request, origin, key, value string) {
	if origin == "" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(key + "=" + value))
		return
	}
	target, err := url.Parse(origin)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid origin")
		return
	}
	q := target.Query()
	q.Set(key, value)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
