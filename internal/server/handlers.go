package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mailbae/dashboard/internal/auth"
	"github.com/mailbae/dashboard/internal/backend"
	"github.com/mailbae/dashboard/internal/draft"
	"github.com/mailbae/dashboard/internal/logging"
	"github.com/mailbae/dashboard/internal/prefs"
	"github.com/mailbae/dashboard/internal/session"
)

// handleLogin redirects the browser to the provider's consent screen
// with a fresh single-use state nonce.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := s.newStateNonce()
	http.Redirect(w, r, auth.AuthCodeURL(s.sc.pipeline.Config(), state), http.StatusFound)
}

// handleCallback finishes the grant: validates the state nonce, runs the
// sign-in pipeline and sets the session cookie. A failed credential
// upsert is logged and the login proceeds; a failed identity resolution
// denies the login.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		s.sc.logger.Warn("provider returned authorization error",
			logging.Operation("callback"),
			logging.Status(errCode))
		http.Error(w, "authorization was denied", http.StatusForbidden)
		return
	}

	if !s.nonces.consume(query.Get("state")) {
		http.Error(w, "invalid state", http.StatusForbidden)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	result, err := s.sc.pipeline.SignIn(r.Context(), code)
	if err != nil {
		s.sc.logger.Warn("sign-in failed",
			logging.Operation("callback"),
			logging.Err(err))
		http.Error(w, "sign-in failed", http.StatusForbidden)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    result.Session,
		Path:     "/",
		MaxAge:   int(session.DefaultTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	s.sc.metrics.IncrementActiveSessions(r.Context())
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// handleLogout clears the session cookie. The active-sessions gauge is
// best-effort: it only moves on an authenticated logout, and a cookie
// that silently expires never decrements it.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if _, ok := SessionFromContext(r.Context()); ok {
		s.sc.metrics.DecrementActiveSessions(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionResponse is the projection handed to the browser: the token
// pair and the account email, nothing else.
type sessionResponse struct {
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// handleSession returns the current session projection.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Email:        sess.Email,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	})
}

// queryForSession builds the windowed query for the signed-in user from
// their saved preferences.
func (s *Server) queryForSession(r *http.Request, sess session.Session) backend.Query {
	pref, err := s.sc.prefs.Get(r.Context(), sess.Email)
	if err != nil {
		s.sc.logger.Warn("failed to load preferences, using defaults",
			logging.UserHash(sess.Email),
			logging.Err(err))
		pref = prefs.Defaults()
	}
	return backend.Query{
		UserEmail: sess.Email,
		Timezone:  pref.Timezone,
		SinceHour: pref.SinceHour,
	}
}

// handleReplies returns the auto-respond candidates with their draft
// state. Signed-out requests and backend failures both render the empty
// set.
func (s *Server) handleReplies(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]draft.Entry{})
		return
	}

	candidates, err := s.sc.queries.Replies(r.Context(), s.queryForSession(r, sess))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]draft.Entry{})
		return
	}

	board := s.sc.boards.ForUser(sess.Email)
	board.Load(candidates)
	writeJSON(w, http.StatusOK, board.Entries())
}

// handleSummary returns the grouped daily summary. Failures render the
// empty list.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, []backend.SummaryGroup{})
		return
	}

	groups, err := s.sc.queries.Summarize(r.Context(), s.queryForSession(r, sess))
	if err != nil || groups == nil {
		groups = []backend.SummaryGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// handleReceived returns the received-count stat. Failures render zero.
func (s *Server) handleReceived(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]int{"count": 0})
		return
	}

	count, err := s.sc.queries.ReceivedCount(r.Context(), s.queryForSession(r, sess))
	if err != nil {
		count = 0
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// handleRefresh drops the user's cached query results. The next
// dashboard read refetches.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}

	s.sc.queries.Invalidate(sess.Email)
	w.WriteHeader(http.StatusNoContent)
}

// draftAction resolves the board entry targeted by a draft lifecycle
// request.
func (s *Server) draftAction(w http.ResponseWriter, r *http.Request) (*draft.Board, string, bool) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return nil, "", false
	}
	return s.sc.boards.ForUser(sess.Email), r.PathValue("id"), true
}

func writeDraftError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, draft.ErrUnknownCandidate):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, draft.ErrNoReplyNeeded):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, draft.ErrSendInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// handleDraftEdit moves a candidate into the editing state.
func (s *Server) handleDraftEdit(w http.ResponseWriter, r *http.Request) {
	board, id, ok := s.draftAction(w, r)
	if !ok {
		return
	}
	if err := board.Edit(id); err != nil {
		writeDraftError(w, err)
		return
	}
	entry, _ := board.Get(id)
	writeJSON(w, http.StatusOK, entry)
}

// handleDraftText overwrites the edit buffer.
func (s *Server) handleDraftText(w http.ResponseWriter, r *http.Request) {
	board, id, ok := s.draftAction(w, r)
	if !ok {
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := board.UpdateText(id, body.Text); err != nil {
		writeDraftError(w, err)
		return
	}
	entry, _ := board.Get(id)
	writeJSON(w, http.StatusOK, entry)
}

// handleDraftCancel discards the edit.
func (s *Server) handleDraftCancel(w http.ResponseWriter, r *http.Request) {
	board, id, ok := s.draftAction(w, r)
	if !ok {
		return
	}
	if err := board.Cancel(id); err != nil {
		writeDraftError(w, err)
		return
	}
	entry, _ := board.Get(id)
	writeJSON(w, http.StatusOK, entry)
}

// sendResponse is the toast payload for a send attempt. Detail carries
// the processing service's failure text unchanged.
type sendResponse struct {
	MessageID string `json:"message_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// handleDraftSend delivers the candidate's current text. Failure keeps
// the edit state intact and surfaces the backend's detail verbatim.
func (s *Server) handleDraftSend(w http.ResponseWriter, r *http.Request) {
	board, id, ok := s.draftAction(w, r)
	if !ok {
		return
	}

	messageID, err := board.Send(r.Context(), id)
	if err != nil {
		var backendErr *backend.Error
		if errors.As(err, &backendErr) {
			writeJSON(w, http.StatusBadGateway, sendResponse{Detail: backendErr.Detail})
			return
		}
		if errors.Is(err, draft.ErrUnknownCandidate) || errors.Is(err, draft.ErrNoReplyNeeded) ||
			errors.Is(err, draft.ErrSendInFlight) {
			writeDraftError(w, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, sendResponse{Detail: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{MessageID: messageID})
}

// handleSettingsGet returns the user's preferences, defaults included.
func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}

	pref, err := s.sc.prefs.Get(r.Context(), sess.Email)
	if err != nil {
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

// handleSettingsPut saves the preferences and invalidates the user's
// cached queries so the new window takes effect immediately.
func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}

	var pref prefs.Preference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := s.sc.prefs.Put(r.Context(), sess.Email, pref); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.sc.queries.Invalidate(sess.Email)
	writeJSON(w, http.StatusOK, pref)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
