// ABOUTME: User administration handlers: list accounts, change a role, reset a password
// ABOUTME: Routes are wrapped in requireAdmin; mutations go through admin.Service

package webui

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/2389/labmap/internal/admin"
	"github.com/2389/labmap/internal/auth"
	"github.com/2389/labmap/internal/store"
)

func (u *UI) handleUsersPage(w http.ResponseWriter, r *http.Request) {
	r, _ = u.ensureCSRFToken(w, r)
	u.showUsers(w, r, http.StatusOK, r.URL.Query().Get("flash"), "")
}

// showUsers lists the directory with an optional flash or error message
func (u *UI) showUsers(w http.ResponseWriter, r *http.Request, status int, flash, errMsg string) {
	users, err := u.admin.ListUsers(r.Context())
	if err != nil {
		u.logger.Error("failed to list users", "error", err)
		status = http.StatusInternalServerError
		errMsg = "Impossible de charger la liste des utilisateurs."
	}

	var current string
	if user := getUserFromContext(r); user != nil {
		current = user.UID
	}

	u.renderUsersPage(w, r, status, usersData{
		Users:   users,
		Flash:   flash,
		Error:   errMsg,
		Current: current,
	})
}

func (u *UI) handleSetRole(w http.ResponseWriter, r *http.Request) {
	if !u.parseAdminForm(w, r) {
		return
	}

	uid := r.PathValue("uid")
	role := r.FormValue("role")
	actor := auth.SessionFromContext(r.Context()).Email()

	if err := u.admin.SetRole(r.Context(), actor, uid, role); err != nil {
		u.adminFailure(w, r, "set role", uid, err)
		return
	}

	u.logger.Info("role updated", "actor", actor, "uid", uid, "role", role)
	redirectWithFlash(w, r, fmt.Sprintf("Rôle mis à jour en %s.", role))
}

func (u *UI) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if !u.parseAdminForm(w, r) {
		return
	}

	uid := r.PathValue("uid")
	actor := auth.SessionFromContext(r.Context()).Email()

	if err := u.admin.ResetPassword(r.Context(), actor, uid, r.FormValue("password")); err != nil {
		u.adminFailure(w, r, "reset password", uid, err)
		return
	}

	u.logger.Info("password reset", "actor", actor, "uid", uid)
	redirectWithFlash(w, r, "Mot de passe réinitialisé.")
}

// parseAdminForm parses the form and checks CSRF, rendering the page on failure
func (u *UI) parseAdminForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		r, _ = u.ensureCSRFToken(w, r)
		u.showUsers(w, r, http.StatusBadRequest, "", "Formulaire invalide.")
		return false
	}
	if !u.validateCSRF(r) {
		r, _ = u.ensureCSRFToken(w, r)
		u.showUsers(w, r, http.StatusForbidden, "", "Requête invalide, veuillez réessayer.")
		return false
	}
	return true
}

// adminFailure maps an admin.Service error to a status and renders it on the page
func (u *UI) adminFailure(w http.ResponseWriter, r *http.Request, op, uid string, err error) {
	r, _ = u.ensureCSRFToken(w, r)

	var writeErr *admin.DirectoryWriteError
	switch {
	case errors.Is(err, admin.ErrInvalidRole):
		u.showUsers(w, r, http.StatusBadRequest, "", "Rôle invalide : choisissez user ou admin.")
	case errors.Is(err, admin.ErrEmptyPassword):
		u.showUsers(w, r, http.StatusBadRequest, "", "Vous devez saisir un nouveau mot de passe.")
	case errors.Is(err, store.ErrUserNotFound):
		u.showUsers(w, r, http.StatusNotFound, "", "Utilisateur introuvable.")
	case errors.As(err, &writeErr):
		u.logger.Error("directory write failed", "op", op, "uid", uid, "error", err)
		u.showUsers(w, r, http.StatusInternalServerError, "", "Échec de la mise à jour : "+writeErr.Error())
	default:
		u.logger.Error("admin operation failed", "op", op, "uid", uid, "error", err)
		u.showUsers(w, r, http.StatusInternalServerError, "", "Une erreur est survenue.")
	}
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, flash string) {
	http.Redirect(w, r, "/admin/users?flash="+url.QueryEscape(flash), http.StatusSeeOther)
}
