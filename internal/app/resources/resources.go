// Package resources embeds the site chrome: the shared layout templates and
// the static css/js assets.
package resources

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"github.com/dalemusser/waffle/pantry/templates"
)

// templates/ holds layout_head, layout_foot, menu, flashes and newsletter_form.
//
//go:embed templates/*.gohtml
var sharedFS embed.FS

//go:embed assets/css/*.css assets/js/*.js
var assetsFS embed.FS

// TemplatePattern is where every feature keeps its page templates.
const TemplatePattern = "templates/*.gohtml"

// RegisterFeature adds a feature's embedded templates to the engine. Feature
// packages call it from init so that importing them is enough.
func RegisterFeature(name string, fsys fs.FS) {
	templates.Register(templates.Set{Name: name, FS: fsys, Patterns: []string{TemplatePattern}})
}

var sharedOnce sync.Once

// LoadSharedTemplates registers the layout set. Call before the engine boots.
func LoadSharedTemplates() {
	sharedOnce.Do(func() { RegisterFeature("shared", sharedFS) })
}

// Assets is the embedded tree rooted at assets/, so paths read "css/site.css".
func Assets() fs.FS {
	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		panic("resources: " + err.Error())
	}
	return sub
}

// AssetsHandler serves Assets below prefix with a one day cache lifetime.
// Directory paths get a 404 instead of a listing.
func AssetsHandler(prefix string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.FS(Assets())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, prefix)
		if strings.Trim(rest, "/") == "" || strings.HasSuffix(rest, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
