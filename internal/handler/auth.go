package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/auth"
	"github.com/codevault/codevault/internal/service"
)

// AuthHandler manages sign-in, sign-out and the current-user lookup.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, sign the user in, set the cookie
//   - HandleRegister       → create a local email/password account
//   - HandleLogin          → sign in a local account
//   - HandleLogout         → clear the session cookie
//   - HandleMe             → the signed-in user, or null
//
// github may be nil when no OAuth app is configured; the GitHub routes then
// answer 404 and local accounts still work.
type AuthHandler struct {
	svc          *service.AuthService
	github       *auth.GitHubProvider
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, github *auth.GitHubProvider, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		github:       github,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// APIRoutes registers the JSON endpoints under /api/auth. The router must
// carry OptionalAuth so HandleMe can see a session when there is one.
func (h *AuthHandler) APIRoutes(r chi.Router) {
	r.Get("/auth/me", h.HandleMe)
	r.Post("/auth/logout", h.HandleLogout)
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
}

// BrowserRoutes registers the redirect-based OAuth endpoints.
func (h *AuthHandler) BrowserRoutes(r chi.Router) {
	r.Get("/auth/github/login", h.HandleGitHubLogin)
	r.Get("/auth/github/callback", h.HandleGitHubCallback)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// authorize URL. The callback only proceeds when both match, which proves the
// flow started here.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. Upsert the user and issue a session token (AuthService)
//  4. Store the token in an HttpOnly cookie and redirect to the app
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie(auth.StateCookie)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/?auth=failed", http.StatusSeeOther)
		return
	}

	res, err := h.svc.LoginGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, "/?auth=failed", http.StatusSeeOther)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.svc.SessionTTL(), h.secureCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleRegister creates a local account and signs it in.
//
// HTTP: POST /api/auth/register
// BODY: {"email": "...", "password": "...", "name"?: "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req, defaultBodyLimit); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.svc.SessionTTL(), h.secureCookie)
	writeJSON(w, http.StatusCreated, res.User)
}

// HandleLogin signs in a local account.
//
// HTTP: POST /api/auth/login
// BODY: {"email": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req, defaultBodyLimit); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.svc.SessionTTL(), h.secureCookie)
	writeJSON(w, http.StatusOK, res.User)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
//
// Sessions are stateless JWTs, so logging out only removes the cookie; the
// token stays valid until it expires but the browser no longer sends it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookie)
	writeJSON(w, http.StatusOK, successResponse)
}

// HandleMe returns the signed-in user, or JSON null when there is none.
//
// HTTP: GET /api/auth/me
//
// A token for a user that no longer exists also yields null: the frontend
// treats both as "show the sign-in page".
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, jsonNull)
		return
	}

	user, err := h.svc.Me(r.Context(), userID)
	if errors.Is(err, apperror.ErrNotFound) {
		writeJSON(w, http.StatusOK, jsonNull)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
