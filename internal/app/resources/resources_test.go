package resources

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAssets(t *testing.T) {
	for _, name := range []string{"css/site.css", "js/site.js"} {
		if _, err := fs.Stat(Assets(), name); err != nil {
			t.Errorf("asset %s missing: %v", name, err)
		}
	}
}

func TestAssetsHandler(t *testing.T) {
	h := AssetsHandler("/assets")

	tests := []struct {
		path string
		want int
	}{
		{"/assets/css/site.css", http.StatusOK},
		{"/assets/js/site.js", http.StatusOK},
		{"/assets/css/missing.css", http.StatusNotFound},
		{"/assets/css/", http.StatusNotFound},
		{"/assets/", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/css/site.css", nil))
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/css") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("missing Cache-Control")
	}
}

func TestSharedTemplatesEmbedded(t *testing.T) {
	for _, name := range []string{"layout.gohtml", "menu.gohtml", "flash.gohtml", "newsletter.gohtml"} {
		data, err := fs.ReadFile(sharedFS, "templates/"+name)
		if err != nil {
			t.Errorf("template %s missing: %v", name, err)
			continue
		}
		if !strings.Contains(string(data), "{{define") {
			t.Errorf("template %s defines nothing", name)
		}
	}
}
