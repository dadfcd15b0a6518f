// Package assets serves the static files of the web UI embedded via go:embed.
// Every file gets a content fingerprint so pages can link it with a
// cache-busting query, and fingerprinted requests are cached for a year.
package assets

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

// fingerprints maps a path relative to static/ to the first 8 hex
// characters of its SHA-256.
var fingerprints = computeFingerprints(staticFS)

func computeFingerprints(fsys fs.FS) map[string]string {
	out := make(map[string]string)
	_ = fs.WalkDir(fsys, "static", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		out[strings.TrimPrefix(p, "static/")] = hex.EncodeToString(sum[:])[:8]
		return nil
	})
	return out
}

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the Go standard library's MIME type database,
// then to "application/octet-stream" if unknown.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// Href returns the fingerprinted URL of name under /static/, or "" when
// no such file is embedded.
func Href(name string) string {
	fp, ok := fingerprints[name]
	if !ok {
		return ""
	}
	return "/static/" + name + "?v=" + fp
}

// FileServer returns an http.Handler that serves embedded assets from static/.
// Requests carrying the current fingerprint get immutable cache headers; others get no-cache.
// The handler expects paths relative to the static root (strip /static/ before calling).
func FileServer() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if _, ok := fingerprints[name]; !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", mimeFromExt(strings.ToLower(path.Ext(name))))
		if v := r.URL.Query().Get("v"); v != "" && v == fingerprints[name] {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}

		fileServer.ServeHTTP(w, r)
	})
}
