package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/juhiii45/EcoReborn/internal/app/system/jsonutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"go.uber.org/zap"
)

// LoadSessionUser puts the signed-in user, if any, into the request context.
// With a UserFetcher set the user is re-read on every request, so a role
// change or deactivation applies to existing sessions at once.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.store.Get(r, sm.name)
		if err != nil {
			sm.logSessionError(r, err)
		}

		uid := getString(sess, uidKey)
		if uid == "" {
			next.ServeHTTP(w, r)
			return
		}

		cached := &SessionUser{
			ID:    uid,
			Name:  getString(sess, nameKey),
			Email: getString(sess, emailKey),
			Role:  getString(sess, roleKey),
			Token: getString(sess, tokenKey),
		}
		if sm.userFetcher == nil {
			next.ServeHTTP(w, withUser(r, cached))
			return
		}

		fresh, err := sm.userFetcher.FetchUser(r.Context(), uid)
		switch {
		case err != nil:
			sm.logger.Warn("session user lookup failed, using cookie values",
				zap.String("user_id", uid), zap.Error(err))
			r = withUser(r, cached)
		case fresh == nil:
			sm.logger.Info("session ended: account missing or inactive",
				zap.String("user_id", uid),
				zap.String("path", r.URL.Path))
			clearIdentity(sess)
			if err := sess.Save(r, w); err != nil {
				sm.logger.Warn("clear session failed", zap.Error(err))
			}
		default:
			fresh.Token = cached.Token
			r = withUser(r, fresh)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn lets only signed-in users through.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			sm.unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole lets through signed-in users holding one of allowed. Roles
// compare case-insensitively.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]bool, len(allowed))
	for _, role := range allowed {
		set[normalize.Role(role)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				sm.unauthorized(w, r)
				return
			}
			if !set[normalize.Role(u.Role)] {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// unauthorized sends browsers to /login with the current URI as next.
// Other clients get a bare 401.
func (sm *SessionManager) unauthorized(w http.ResponseWriter, r *http.Request) {
	loginURL := "/login?next=" + url.QueryEscape(r.URL.RequestURI())

	switch {
	case isHTMX(r):
		w.Header().Set("HX-Redirect", loginURL)
		w.WriteHeader(http.StatusUnauthorized)
	case wantsHTML(r):
		sm.AddFlash(w, r, FlashWarning, "Please log in to access this page.")
		http.Redirect(w, r, loginURL, http.StatusSeeOther)
	case jsonutil.Wants(r):
		jsonutil.Error(w, http.StatusUnauthorized, "unauthorized")
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	switch {
	case isHTMX(r):
		w.Header().Set("HX-Redirect", "/forbidden")
		w.WriteHeader(http.StatusForbidden)
	case wantsHTML(r):
		http.Redirect(w, r, "/forbidden", http.StatusSeeOther)
	case jsonutil.Wants(r):
		jsonutil.Error(w, http.StatusForbidden, "forbidden")
	default:
		http.Error(w, "forbidden", http.StatusForbidden)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func wantsHTML(r *http.Request) bool {
	return isHTMX(r) || strings.Contains(r.Header.Get("Accept"), "text/html")
}
