// ABOUTME: Template rendering functions for the web UI
// ABOUTME: Loads templates from the embedded filesystem and renders them

package webui

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/2389/labmap/internal/assets"
	"github.com/2389/labmap/internal/auth"
	"github.com/2389/labmap/internal/mapping"
	"github.com/2389/labmap/internal/store"
	"github.com/2389/labmap/internal/table"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed instructions.md
var instructionsMD []byte

var instructionsHTML = renderMarkdown(instructionsMD)

var templateFuncs = template.FuncMap{
	"asset": assets.Href,
}

// Template data types
type pageData struct {
	Title     string
	Session   *auth.Session
	CSRFToken string
}

type loginData struct {
	pageData
	Error string
}

type fileError struct {
	File    string
	Message string
	Missing []string
}

type mappingData struct {
	pageData
	Instructions   template.HTML
	Errors         []fileError
	Laboratories   *table.Table // previews, at most PreviewRows rows
	Products       *table.Table
	Result         *table.Table
	LaboratoryRows int
	ProductRows    int
	Summary        mapping.Summary
	PreviewRows    int
	Token          string
}

type usersData struct {
	pageData
	Users   []*store.User
	Flash   string
	Error   string
	Roles   []auth.Role
	Current string
}

func (u *UI) page(r *http.Request, title string) pageData {
	return pageData{
		Title:     title,
		Session:   auth.SessionFromContext(r.Context()),
		CSRFToken: getCSRFToken(r),
	}
}

// render executes the base template with the named page template
func (u *UI) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, err := template.New("base.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+name)
	if err != nil {
		u.logger.Error("failed to parse template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		u.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderLoginPage renders the login page
func (u *UI) renderLoginPage(w http.ResponseWriter, r *http.Request, status int, errorMsg string) {
	u.render(w, status, "login.html", loginData{
		pageData: u.page(r, "Connexion"),
		Error:    errorMsg,
	})
}

// renderMappingPage renders the upload form with any preview
func (u *UI) renderMappingPage(w http.ResponseWriter, r *http.Request, status int, data mappingData) {
	data.pageData = u.page(r, "Mapping")
	data.Instructions = instructionsHTML
	data.PreviewRows = u.config.PreviewRows
	u.render(w, status, "mapping.html", data)
}

// renderUsersPage renders the user administration page
func (u *UI) renderUsersPage(w http.ResponseWriter, r *http.Request, status int, data usersData) {
	data.pageData = u.page(r, "Administration des utilisateurs")
	data.Roles = []auth.Role{auth.RoleUser, auth.RoleAdmin}
	u.render(w, status, "admin_users.html", data)
}

// renderDenied renders the 403 page
func (u *UI) renderDenied(w http.ResponseWriter, r *http.Request) {
	r, _ = u.ensureCSRFToken(w, r)
	u.render(w, http.StatusForbidden, "denied.html", u.page(r, "Accès refusé"))
}

func renderMarkdown(src []byte) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert(src, &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(string(src)) + "</p>")
	}
	return template.HTML(buf.String())
}
