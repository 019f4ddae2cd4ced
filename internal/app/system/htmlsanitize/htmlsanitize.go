// Package htmlsanitize turns form input into plain text. Markup is never
// stored; templates escape the text again on display.
package htmlsanitize

import (
	"html"
	"sync"

	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/microcosm-cc/bluemonday"
)

var strict = sync.OnceValue(bluemonday.StrictPolicy)

// PlainText drops every element (script and style with their contents),
// decodes entities and applies normalize.Text. Interior newlines survive.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return normalize.Text(html.UnescapeString(strict().Sanitize(s)))
}
