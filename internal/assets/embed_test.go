package assets

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestMimeFromExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".js", "application/javascript"},
		{".mjs", "application/javascript"},
		{".css", "text/css; charset=utf-8"},
		{".svg", "image/svg+xml"},
		{".qqqqqq", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := mimeFromExt(tt.ext); got != tt.want {
			t.Errorf("mimeFromExt(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestComputeFingerprints(t *testing.T) {
	fsys := fstest.MapFS{
		"static/a.css":     {Data: []byte("body{}")},
		"static/js/b.js":   {Data: []byte("1")},
		"static/c.css":     {Data: []byte("body{}")},
		"elsewhere/d.html": {Data: []byte("x")},
	}
	got := computeFingerprints(fsys)

	if len(got) != 3 {
		t.Fatalf("got %d fingerprints, want 3: %v", len(got), got)
	}
	if len(got["a.css"]) != 8 {
		t.Errorf("fingerprint %q should be 8 hex chars", got["a.css"])
	}
	if got["a.css"] != got["c.css"] {
		t.Error("identical content should share a fingerprint")
	}
	if got["a.css"] == got["js/b.js"] {
		t.Error("different content should not share a fingerprint")
	}
}

func TestHref(t *testing.T) {
	href := Href("labmap.css")
	if !strings.HasPrefix(href, "/static/labmap.css?v=") {
		t.Errorf("Href(labmap.css) = %q", href)
	}
	if Href("missing.css") != "" {
		t.Error("Href of an unknown file should be empty")
	}
}

func TestFileServer(t *testing.T) {
	srv := FileServer()
	fp := fingerprints["labmap.css"]

	tests := []struct {
		name      string
		url       string
		wantCode  int
		wantCache string
	}{
		{"fingerprinted", "/labmap.css?v=" + fp, http.StatusOK, "public, max-age=31536000, immutable"},
		{"stale fingerprint", "/labmap.css?v=00000000", http.StatusOK, "no-cache"},
		{"bare", "/labmap.css", http.StatusOK, "no-cache"},
		{"unknown", "/nope.css", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if got := rec.Header().Get("Cache-Control"); got != tt.wantCache {
				t.Errorf("Cache-Control = %q, want %q", got, tt.wantCache)
			}
			if got := rec.Header().Get("Content-Type"); got != "text/css; charset=utf-8" {
				t.Errorf("Content-Type = %q", got)
			}
			if !strings.Contains(rec.Body.String(), "border-collapse") {
				t.Error("body should be the stylesheet")
			}
		})
	}
}
