// Package inputval checks submitted forms against `validate` struct tags and
// turns failures into messages fit to show next to the field.
//
//	type signupForm struct {
//	    Name  string `json:"name" validate:"required,min=2,max=100" label:"Full name"`
//	    Email string `json:"email" validate:"required,email,max=120,nodisposable" label:"Email"`
//	}
//
//	if res := inputval.Validate(form); res.HasErrors() {
//	    // res.First() for a banner, res.Fields() for inline errors
//	}
//
// The field key is the json tag name when present, else the Go field name.
package inputval

import (
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/dalemusser/waffle/pantry/validate"
	"github.com/juhiii45/EcoReborn/internal/app/system/authutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/emailcheck"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Label   string
	Message string
}

// Result collects the failures of one Validate call.
type Result struct {
	Errors []FieldError
}

func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First is the message shown in the page banner.
func (r *Result) First() string {
	if !r.HasErrors() {
		return ""
	}
	return r.Errors[0].Message
}

func (r *Result) All() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Fields keeps the first message per field.
func (r *Result) Fields() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.Message
		}
	}
	return out
}

// Add records a failure no tag can express, such as a mismatched
// confirmation field.
func (r *Result) Add(field, label, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Label: label, Message: message})
}

var phonePattern = regexp.MustCompile(`^[\d\s\-+()]+$`)

// customRules extend pantry/validate's built-in set (required, email, min,
// max, oneof, timezone).
var customRules = map[string]func(string) bool{
	"password": func(s string) bool { return authutil.ValidatePassword(s) == nil },
	// Optional fields carry their own "required".
	"phone":        func(s string) bool { return s == "" || IsValidPhone(s) },
	"nodisposable": func(s string) bool { return !emailcheck.IsDisposable(s) },
	"httpurl":      IsValidHTTPURL,
	"objectid":     IsValidObjectID,
}

var (
	validatorOnce sync.Once
	validator     *validate.Validator
)

func rules() *validate.Validator {
	validatorOnce.Do(func() {
		validator = validate.New(validate.WithStopOnFirstError())
		for name, check := range customRules {
			check := check
			validator.RegisterRuleFunc(name, func(v any) bool {
				s, ok := v.(string)
				return ok && check(s)
			}, name)
		}
	})
	return validator
}

// Validate runs the tag rules on s, a struct or pointer to one. The result is
// never nil.
func Validate(s any) *Result {
	res := &Result{}
	err := rules().Struct(s)
	if err == nil {
		return res
	}
	errs, ok := err.(validate.Errors)
	if !ok {
		return res
	}

	labels := labelsOf(s)
	for _, e := range errs {
		label := labels[e.Field]
		if label == "" {
			label = e.Field
		}
		res.Add(e.Field, label, message(label, e.Rule, e.Param))
	}
	return res
}

func labelsOf(s any) map[string]string {
	labels := map[string]string{}
	t := reflect.TypeOf(s)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return labels
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		label := f.Tag.Get("label")
		if label == "" {
			continue
		}
		key := f.Name
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			key = name
		}
		labels[key] = label
	}
	return labels
}

func message(label, rule, param string) string {
	switch rule {
	case "required":
		return label + " is required."
	case "email":
		return "A valid email address is required."
	case "min":
		return label + " must be at least " + param + " characters."
	case "max":
		return label + " must be at most " + param + " characters."
	case "oneof", "enum":
		return label + " must be one of: " + strings.Join(strings.Fields(param), ", ") + "."
	case "timezone":
		return label + " must be a valid time zone."
	case "password":
		return authutil.PasswordRules()
	case "phone":
		return "Please enter a valid phone number."
	case "nodisposable":
		return emailcheck.ErrDisposable.Error()
	case "httpurl":
		return label + " must be a valid URL starting with http:// or https://."
	case "objectid":
		return label + " is not a valid ID."
	}
	return label + " is invalid."
}

// IsValidPhone accepts digits, spaces and the characters -+().
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// IsValidHTTPURL requires an absolute http or https URL with a host.
func IsValidHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func IsValidObjectID(s string) bool {
	return primitive.IsValidObjectID(strings.TrimSpace(s))
}
