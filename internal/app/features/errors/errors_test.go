package errors

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/juhiii45/EcoReborn/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPages(t *testing.T) {
	testutil.MustBootTemplates(t)
	h := NewHandler("5 MB")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    int
		want    string
	}{
		{"unauthorized", h.Unauthorized, http.StatusUnauthorized, "Please log in"},
		{"forbidden", h.Forbidden, http.StatusForbidden, "Access Denied"},
		{"csrf", h.CSRFFailure, http.StatusForbidden, "form session has expired"},
		{"not found", h.NotFound, http.StatusNotFound, "Page Not Found"},
		{"too large", h.TooLarge, http.StatusRequestEntityTooLarge, "Maximum size is 5 MB."},
		{"too many", h.TooManyRequests, http.StatusTooManyRequests, "too many attempts"},
		{"internal", h.InternalError, http.StatusInternalServerError, "Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.WithCSRFToken(httptest.NewRequest(http.MethodGet, "/x", nil))
			rec := httptest.NewRecorder()

			tt.handler(rec, req)

			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

func TestNewHandler_DefaultLimit(t *testing.T) {
	if h := NewHandler(""); h.maxUpload != "2 MB" {
		t.Errorf("maxUpload = %q, want 2 MB", h.maxUpload)
	}
}

func TestErrorLogger_Log(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	errLog := NewErrorLogger(zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/contact", nil)
	errLog.Log(req, "failed to save message", stderrors.New("boom"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.ErrorLevel || e.Message != "failed to save message" {
		t.Errorf("entry = %v %q", e.Level, e.Message)
	}
	fields := e.ContextMap()
	if fields["path"] != "/contact" || fields["method"] != http.MethodPost || fields["error"] != "boom" {
		t.Errorf("fields = %v", fields)
	}
}

func TestErrorLogger_LogExtraFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	errLog := NewErrorLogger(zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/admin/inbox", nil)
	errLog.Log(req, "attachment missing", nil, zap.String("message_id", "m1"))

	if got := logs.FilterField(zap.String("message_id", "m1")).Len(); got != 1 {
		t.Errorf("entries with message_id = %d, want 1", got)
	}
}
