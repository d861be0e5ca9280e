package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/scratchpad/internal/auth"
	"github.com/sakif/scratchpad/internal/service"
)

// AuthHandler exposes every way in and out of an account.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create a username/password account, sign in
//   - HandleLogin          → password sign-in
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it for a user, issue JWT
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → return the currently logged-in user's profile
//
// All account rules live in service.AuthService; this layer only parses
// requests, sets cookies, and writes responses. The GitHub provider is
// optional: when OAuth is not configured (no client ID), the two GitHub
// routes answer 503 and the password routes carry the app alone.
type AuthHandler struct {
	authService *service.AuthService
	github      *auth.GitHubProvider
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil when GitHub OAuth
// is not configured.
func NewAuthHandler(authService *service.AuthService, github *auth.GitHubProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		github:      github,
		logger:      logger,
	}
}

// credentialsRequest is the JSON body shared by register and login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates a new username/password account.
//
// HTTP: POST /api/auth/register
// BODY: {"username": "ada", "password": "secret-enough"}
//
// On success the JWT cookie is set and the new user is returned with 201.
// A taken username comes back as 409, validation problems as 400.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("register: invalid JSON body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	result, err := h.authService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setAuthCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, result.User)
}

// HandleLogin authenticates a username/password account.
//
// HTTP: POST /api/auth/login
// BODY: {"username": "ada", "password": "secret-enough"}
//
// Bad credentials are always 401 with the same message; the endpoint never
// reveals whether the username exists.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("login: invalid JSON body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setAuthCookie(w, result.Token)
	writeJSON(w, http.StatusOK, result.User)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: not sent on cross-site POSTs (extra CSRF protection)
//   - 10-minute expiry: long enough for the user to approve, short enough to limit risk
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "oauth_unconfigured",
			Message: "GitHub login is not configured on this server",
		})
		return
	}

	// Generate a random, unguessable state value
	state := xid.New().String()

	// Store it in a cookie so we can verify it on callback
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// Redirect the browser to GitHub
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Upsert the account and issue a JWT (service layer)
//  4. Set the JWT cookie and redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.Error(w, "GitHub login is not configured", http.StatusServiceUnavailable)
		return
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", stateCookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Clear the state cookie, it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Check if GitHub sent an error (user denied authorization)
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 3: Upsert account and issue JWT ---
	result, err := h.authService.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 4: Cookie and redirect ---
	h.setAuthCookie(w, result.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the JWT cookie, effectively logging the user out.
//
// HTTP: POST /api/auth/logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. Using GET would be vulnerable to
// CSRF and to browsers pre-fetching the URL. POST ensures intentional action.
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires, but without
// the cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
//
// This is how the frontend learns who is logged in: on page load it calls
// /api/me, and a 401 means "show the login form".
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	// Auth middleware has already validated the JWT and set userID in context.
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not signed in"})
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// setAuthCookie stores the JWT in an HttpOnly cookie.
//
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
// The lifetime matches the token's own expiry, so the cookie and the JWT
// inside it die together. Secure should be true in production (HTTPS only);
// we leave it false for local dev.
func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.AccessTokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Uncomment in production (requires HTTPS)
	})
}
