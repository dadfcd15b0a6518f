// Package webui provides the browser interface of labmap.
//
// # Overview
//
// The web UI provides:
//
//   - Login: email or username plus password, checked by auth.Verifier
//   - Mapping: upload a LABOS and a PRODUITS file, preview both and the joined result
//   - Export: download the joined result as CSV, recorded in the audit log
//   - Administration: list users, change roles, reset passwords (admin role only)
//
// # Sessions
//
// A successful login stores a server-side session and sets an HttpOnly cookie.
// Every request resolves cookie, session record and directory record into an
// auth.Session carried in the request context, so a role change applies on the
// next request. A failed login while logged in ends the existing session.
//
// Anonymous requests to protected pages are redirected to /login. Authenticated
// users without the admin role get 403 on /admin pages.
//
// # Results
//
// The joined table is kept in a resultcache.Cache between the preview and the
// download. The download link carries a random token that only works for the
// user who ran the mapping, until the cache TTL expires.
//
// # Static Files
//
// The stylesheet comes from internal/assets and is mounted under /static/.
// Templates link it through the asset function so the URL carries its fingerprint.
//
// # CSRF Protection
//
// All form submissions require CSRF tokens:
//
//	<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
//
// # Usage
//
//	ui := webui.New(store, results, archiver, webui.Config{PreviewRows: 20})
//	srv := &http.Server{Addr: addr, Handler: ui.Handler()}
package webui
