// Package formutil provides helpers for form re-rendering with validation errors.
//
// When a form submission fails validation, the form is re-rendered with the
// user's previously entered values, a summary error, and per-field messages.
// Embed Base in the form's view model:
//
//	type signupData struct {
//		formutil.Base
//		Name  string
//		Email string
//	}
//
//	data := signupData{Base: formutil.NewBase(r, "Sign Up", "/"), Name: name, Email: email}
//	data.SetResult(inputval.Validate(in))
//	templates.Render(w, r, "signup/form", data)
package formutil

import (
	"html/template"
	"net/http"

	"github.com/juhiii45/EcoReborn/internal/app/system/inputval"
	"github.com/juhiii45/EcoReborn/internal/app/system/viewdata"
)

// Base contains common fields for form pages that can be embedded in form data structs.
type Base struct {
	viewdata.BaseVM
	Error       template.HTML
	FieldErrors map[string]string
}

// NewBase creates a fully populated Base for a form page.
func NewBase(r *http.Request, title, backDefault string) Base {
	return Base{
		BaseVM: viewdata.NewBaseVM(r, title, backDefault),
	}
}

// SetError sets the error message on a Base struct.
func (b *Base) SetError(msg string) {
	b.Error = template.HTML(template.HTMLEscapeString(msg))
}

// SetResult copies validation failures onto the form. The first message
// becomes the summary.
func (b *Base) SetResult(res *inputval.Result) {
	if res == nil || !res.HasErrors() {
		return
	}
	b.SetError(res.First())
	b.FieldErrors = res.Fields()
}

// FieldError returns the message for one field, for use in templates.
func (b Base) FieldError(field string) string {
	return b.FieldErrors[field]
}
