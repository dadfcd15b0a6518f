// ABOUTME: Web UI for labmap: login, mapping upload/preview/export and user administration
// ABOUTME: Resolves the session from a cookie on every request and guards forms with CSRF tokens

package webui

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/labmap/internal/admin"
	"github.com/2389/labmap/internal/archive"
	"github.com/2389/labmap/internal/assets"
	"github.com/2389/labmap/internal/auth"
	"github.com/2389/labmap/internal/resultcache"
	"github.com/2389/labmap/internal/store"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "labmap_session"

	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "labmap_csrf"
)

type contextKey string

const (
	userContextKey contextKey = "labmap_user"
	csrfContextKey contextKey = "csrf_token"
)

// Config holds web UI settings
type Config struct {
	SessionDuration time.Duration
	PreviewRows     int
	MaxUploadBytes  int64
	SecureCookies   bool
}

// UI handles every labmap HTTP route
type UI struct {
	store    store.Store
	verifier *auth.Verifier
	admin    *admin.Service
	results  *resultcache.Cache
	archiver archive.Archiver
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates the web UI. A nil archiver disables archiving.
func New(s store.Store, results *resultcache.Cache, archiver archive.Archiver, cfg Config) *UI {
	if archiver == nil {
		archiver = archive.Nop{}
	}
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = 12 * time.Hour
	}
	logger := slog.Default().With("component", "webui")
	return &UI{
		store:    s,
		verifier: auth.NewVerifier(s, slog.Default()),
		admin:    admin.NewService(s),
		results:  results,
		archiver: archiver,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes registers all routes on the given mux
func (u *UI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", u.handleHealth)
	mux.Handle("GET /static/", http.StripPrefix("/static/", assets.FileServer()))
	mux.HandleFunc("GET /{$}", u.withSession(u.handleRoot))

	mux.HandleFunc("GET /login", u.withSession(u.handleLoginPage))
	mux.HandleFunc("POST /login", u.withSession(u.handleLogin))
	mux.HandleFunc("POST /logout", u.withSession(u.handleLogout))

	mux.HandleFunc("GET /mapping", u.requireAuth(u.handleMappingPage))
	mux.HandleFunc("POST /mapping", u.requireAuth(u.handleMappingUpload))
	mux.HandleFunc("GET /mapping/export/{token}", u.requireAuth(u.handleExport))

	mux.HandleFunc("GET /admin/users", u.requireAdmin(u.handleUsersPage))
	mux.HandleFunc("POST /admin/users/{uid}/role", u.requireAdmin(u.handleSetRole))
	mux.HandleFunc("POST /admin/users/{uid}/password", u.requireAdmin(u.handleResetPassword))

	u.logger.Info("web routes registered")
}

// Handler returns a mux with every route registered.
func (u *UI) Handler() http.Handler {
	mux := http.NewServeMux()
	u.RegisterRoutes(mux)
	return mux
}

// withSession resolves the session for the request and stores it in the context.
// Requests without a valid session carry a logged-out Session.
func (u *UI) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := &auth.Session{}
		ctx := r.Context()

		user, err := u.getUserFromSession(r)
		switch {
		case err == nil:
			role, roleErr := auth.ParseRole(user.Role)
			if roleErr != nil {
				u.logger.Error("user has unknown role", "uid", user.UID, "role", user.Role)
				break
			}
			name := user.Username
			if name == "" {
				name = user.Email
			}
			sess.Login(user.Email, role, name)
			ctx = context.WithValue(ctx, userContextKey, user)
		case errors.Is(err, http.ErrNoCookie), errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrUserNotFound):
		default:
			u.logger.Error("failed to resolve session", "error", err)
		}

		next(w, r.WithContext(auth.WithSession(ctx, sess)))
	}
}

// requireAuth wraps a handler to require authentication
func (u *UI) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return u.withSession(func(w http.ResponseWriter, r *http.Request) {
		if !auth.SessionFromContext(r.Context()).IsAuthenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	})
}

// requireAdmin wraps a handler to require the admin role
func (u *UI) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return u.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		sess := auth.SessionFromContext(r.Context())
		if err := sess.Authorize(auth.RoleAdmin); err != nil {
			u.logger.Warn("admin access denied", "email", sess.Email(), "path", r.URL.Path)
			u.renderDenied(w, r)
			return
		}
		next(w, r)
	})
}

// getUserFromSession retrieves the directory record behind the session cookie
func (u *UI) getUserFromSession(r *http.Request) (*store.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, err
	}

	session, err := u.store.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}

	return u.store.GetUser(r.Context(), session.UserID)
}

// getUserFromContext retrieves the authenticated user from the request context
func getUserFromContext(r *http.Request) *store.User {
	user, _ := r.Context().Value(userContextKey).(*store.User)
	return user
}

// getCSRFToken retrieves the CSRF token from the request context
func getCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey).(string)
	return token
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (u *UI) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		u.logger.Error("failed to generate CSRF token", "error", err)
		token = ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   u.secure(r),
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from form against cookie.
// The form must already be parsed.
func (u *UI) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// createSession creates a new session for a user and sets the cookie
func (u *UI) createSession(w http.ResponseWriter, r *http.Request, userID string) error {
	sessionID, err := generateSecureToken(32)
	if err != nil {
		return err
	}

	now := u.now()
	session := &store.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(u.config.SessionDuration),
	}

	if err := u.store.CreateSession(r.Context(), session); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   u.secure(r),
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// endSession deletes the server-side session and clears the cookie
func (u *UI) endSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := u.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			u.logger.Warn("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	auth.SessionFromContext(r.Context()).Logout()
}

func (u *UI) secure(r *http.Request) bool {
	return u.config.SecureCookies || r.TLS != nil
}

func (u *UI) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (u *UI) handleRoot(w http.ResponseWriter, r *http.Request) {
	if auth.SessionFromContext(r.Context()).IsAuthenticated() {
		http.Redirect(w, r, "/mapping", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleLoginPage renders the login page, or the "already logged in" state
func (u *UI) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	r, _ = u.ensureCSRFToken(w, r)
	u.renderLoginPage(w, r, http.StatusOK, "")
}

// handleLogin processes login form submission
func (u *UI) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		r, _ = u.ensureCSRFToken(w, r)
		u.renderLoginPage(w, r, http.StatusBadRequest, "Formulaire invalide.")
		return
	}

	if !u.validateCSRF(r) {
		r, _ = u.ensureCSRFToken(w, r)
		u.renderLoginPage(w, r, http.StatusForbidden, "Requête invalide, veuillez réessayer.")
		return
	}

	identifier := r.FormValue("identifier")
	password := r.FormValue("password")

	result := u.verifier.Verify(r.Context(), identifier, password)
	if !result.OK {
		// a failed attempt ends any existing session
		if auth.SessionFromContext(r.Context()).IsAuthenticated() {
			u.endSession(w, r)
		}
		u.logger.Info("login failed", "identifier", identifier)
		r, _ = u.ensureCSRFToken(w, r)
		u.renderLoginPage(w, r, http.StatusUnauthorized, "Email ou mot de passe incorrect.")
		return
	}

	if auth.SessionFromContext(r.Context()).IsAuthenticated() {
		u.endSession(w, r)
	}

	if err := u.createSession(w, r, result.UID); err != nil {
		u.logger.Error("failed to create session", "error", err)
		r, _ = u.ensureCSRFToken(w, r)
		u.renderLoginPage(w, r, http.StatusInternalServerError, "Une erreur est survenue.")
		return
	}

	u.logger.Info("login successful", "email", result.Email, "role", result.Role)
	http.Redirect(w, r, "/mapping", http.StatusSeeOther)
}

// handleLogout logs out the current user
func (u *UI) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil && !u.validateCSRF(r) {
		u.logger.Warn("logout request with invalid CSRF token")
	}

	u.endSession(w, r)

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
