// internal/app/system/ledger/middleware.go
package ledger

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	ledgerstore "github.com/juhiii45/EcoReborn/internal/app/store/ledger"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/network"
	"go.uber.org/zap"
)

type ctxKey struct{}

// Config controls what the recorder keeps.
type Config struct {
	Store    *ledgerstore.Store
	Logger   *zap.Logger
	ClientIP func(*http.Request) string // default network.RemoteIP

	// OnlyErrors keeps responses with status >= 400 and drops the rest.
	OnlyErrors bool
	// Methods limits recording to these methods. Empty records all.
	Methods []string
}

// Recorder writes one ledger entry per request it wraps. Entries are
// stored off the request path; Wait blocks until pending writes finish.
type Recorder struct {
	cfg     Config
	methods map[string]bool
	wg      sync.WaitGroup
}

func New(cfg Config) *Recorder {
	if cfg.ClientIP == nil {
		cfg.ClientIP = network.RemoteIP
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	methods := make(map[string]bool, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods[m] = true
	}
	return &Recorder{cfg: cfg, methods: methods}
}

// Middleware records requests passing through next. Every response carries
// the generated id in X-Request-ID.
func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(rec.methods) > 0 && !rec.methods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)

		entry := &ledgerstore.Entry{
			RequestID: requestID,
			Method:    r.Method,
			Path:      r.URL.Path,
			RemoteIP:  rec.cfg.ClientIP(r),
			UserAgent: r.UserAgent(),
			StartedAt: time.Now().UTC(),
		}
		if u, ok := auth.CurrentUser(r); ok {
			entry.ActorID = u.ID
			entry.ActorName = u.Name
		}

		wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), ctxKey{}, entry)))

		entry.StatusCode = wrapped.statusCode
		entry.ResponseSize = wrapped.bytesWritten
		entry.DurationMs = float64(time.Since(entry.StartedAt).Microseconds()) / 1000.0
		if entry.StatusCode >= 400 && entry.ErrorClass == "" {
			entry.ErrorClass = classify(entry.StatusCode)
		}
		if rec.cfg.OnlyErrors && entry.StatusCode < 400 {
			return
		}

		rec.wg.Add(1)
		go func(e ledgerstore.Entry) {
			defer rec.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rec.cfg.Store.Create(ctx, e); err != nil {
				rec.cfg.Logger.Error("failed to store ledger entry",
					zap.String("request_id", e.RequestID),
					zap.Error(err))
			}
		}(*entry)
	})
}

// Wait blocks until every pending entry has been written.
func (rec *Recorder) Wait() {
	if rec == nil {
		return
	}
	rec.wg.Wait()
}

func classify(code int) string {
	switch {
	case code == http.StatusBadRequest:
		return "validation"
	case code == http.StatusUnauthorized:
		return "auth"
	case code == http.StatusForbidden:
		return "forbidden"
	case code == http.StatusNotFound:
		return "not_found"
	case code == http.StatusRequestEntityTooLarge:
		return "too_large"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	case code >= 500:
		return "internal"
	default:
		return "client_error"
	}
}

// SetErrorClass overrides the class derived from the status code.
func SetErrorClass(ctx context.Context, class string) {
	if e, ok := ctx.Value(ctxKey{}).(*ledgerstore.Entry); ok {
		e.ErrorClass = class
	}
}

// RequestID returns the id of the request being recorded, or "".
func RequestID(ctx context.Context) string {
	if e, ok := ctx.Value(ctxKey{}).(*ledgerstore.Entry); ok {
		return e.RequestID
	}
	return ""
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (rw *responseWrapper) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
