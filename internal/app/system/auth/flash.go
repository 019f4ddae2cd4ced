package auth

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// Flash kinds, rendered as alert-<kind> in the layout.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashError   = "error"
)

var flashKinds = []string{FlashError, FlashWarning, FlashSuccess, FlashInfo}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

func flashKey(kind string) string { return "_flash_" + kind }

// AddFlash queues a message in the session cookie. Unknown kinds are shown as info.
func (sm *SessionManager) AddFlash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	sess := sm.session(r)
	switch kind {
	case FlashSuccess, FlashInfo, FlashWarning, FlashError:
	default:
		kind = FlashInfo
	}
	sess.AddFlash(msg, flashKey(kind))
	if err := sess.Save(r, w); err != nil {
		sm.logger.Warn("save flash failed", zap.Error(err), zap.String("path", r.URL.Path))
	}
}

// popFlashes removes and returns every queued message.
func (sm *SessionManager) popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return nil
	}
	var out []Flash
	for _, kind := range flashKinds {
		for _, v := range sess.Flashes(flashKey(kind)) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := sess.Save(r, w); err != nil {
			sm.logger.Warn("clear flashes failed", zap.Error(err), zap.String("path", r.URL.Path))
		}
	}
	return out
}

type flashCtxKey struct{}

type flashSource struct {
	once sync.Once
	pop  func(*http.Request) []Flash
	got  []Flash
}

// LoadFlashes makes queued messages available to Flashes. They are only
// removed from the session when a page actually asks for them, so a request
// that redirects again keeps them for the next page.
func (sm *SessionManager) LoadFlashes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		src := &flashSource{pop: func(r *http.Request) []Flash { return sm.popFlashes(w, r) }}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), flashCtxKey{}, src)))
	})
}

// Flashes returns the messages queued for this request, consuming them. It
// must be called before the response body is written. Repeated calls return
// the same messages.
func Flashes(r *http.Request) []Flash {
	src, ok := r.Context().Value(flashCtxKey{}).(*flashSource)
	if !ok {
		return nil
	}
	src.once.Do(func() { src.got = src.pop(r) })
	return src.got
}
