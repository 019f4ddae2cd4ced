// Package timeouts bounds the database work done while serving a request.
//
// Handlers pick a tier by how much work the operation does; bootstrap may
// override the tiers from configuration once at startup.
package timeouts

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config holds one duration per tier. Zero fields keep the current value.
type Config struct {
	Ping   time.Duration // health probes
	Short  time.Duration // single-document reads and writes
	Medium time.Duration // page loads that run several queries, form submissions
	Long   time.Duration // attachment uploads and downloads
	Batch  time.Duration // background retention jobs
}

// Defaults are the tiers used until Configure is called.
var Defaults = Config{
	Ping:   2 * time.Second,
	Short:  5 * time.Second,
	Medium: 10 * time.Second,
	Long:   30 * time.Second,
	Batch:  time.Minute,
}

var current atomic.Pointer[Config]

func init() {
	Reset()
}

func get() *Config { return current.Load() }

func Ping() time.Duration   { return get().Ping }
func Short() time.Duration  { return get().Short }
func Medium() time.Duration { return get().Medium }
func Long() time.Duration   { return get().Long }
func Batch() time.Duration  { return get().Batch }

// Configure overrides the tiers set in cfg and returns the effective values.
func Configure(cfg Config) Config {
	next := *get()
	for _, f := range []struct {
		dst *time.Duration
		v   time.Duration
	}{
		{&next.Ping, cfg.Ping},
		{&next.Short, cfg.Short},
		{&next.Medium, cfg.Medium},
		{&next.Long, cfg.Long},
		{&next.Batch, cfg.Batch},
	} {
		if f.v > 0 {
			*f.dst = f.v
		}
	}
	current.Store(&next)
	return next
}

// Reset restores Defaults.
func Reset() {
	d := Defaults
	current.Store(&d)
}

// Current returns the effective tiers.
func Current() Config {
	return *get()
}

// WithTimeout derives a context bounded by timeout. The returned cancel logs
// a warning naming operation if the deadline was hit.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
