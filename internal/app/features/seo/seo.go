// internal/app/features/seo/seo.go
package seo

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Page is one public route listed in the sitemap.
type Page struct {
	Path       string
	Priority   string
	ChangeFreq string
}

// DefaultPages are the public pages worth indexing.
var DefaultPages = []Page{
	{"/", "1.0", "daily"},
	{"/services", "0.9", "weekly"},
	{"/contact", "0.8", "monthly"},
	{"/login", "0.5", "monthly"},
	{"/signup", "0.5", "monthly"},
}

// disallowed are never crawled.
var disallowed = []string{"/dashboard", "/logout", "/reset-password/", "/admin/"}

// Handler serves sitemap.xml and robots.txt.
type Handler struct {
	baseURL string
	pages   []Page
	logger  *zap.Logger
}

// NewHandler creates a new seo Handler. baseURL is the absolute site URL;
// a trailing slash is ignored.
func NewHandler(baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		baseURL: strings.TrimRight(baseURL, "/"),
		pages:   DefaultPages,
		logger:  logger,
	}
}

// Routes returns a chi.Router serving /sitemap.xml and /robots.txt.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/sitemap.xml", h.serveSitemap)
	r.Get("/robots.txt", h.serveRobots)
	return r
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	Priority   string `xml:"priority"`
	ChangeFreq string `xml:"changefreq"`
}

func (h *Handler) serveSitemap(w http.ResponseWriter, r *http.Request) {
	set := urlset{Xmlns: sitemapNS}
	for _, p := range h.pages {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        h.baseURL + p.Path,
			Priority:   p.Priority,
			ChangeFreq: p.ChangeFreq,
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		h.logger.Error("sitemap encode failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

func (h *Handler) serveRobots(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n")
	for _, p := range disallowed {
		fmt.Fprintf(&b, "Disallow: %s\n", p)
	}
	fmt.Fprintf(&b, "\nSitemap: %s/sitemap.xml\n", h.baseURL)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}
