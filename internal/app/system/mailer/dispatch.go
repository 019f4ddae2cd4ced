// internal/app/system/mailer/dispatch.go
package mailer

import (
	"sync"

	"go.uber.org/zap"
)

// Sender delivers one email. *Mailer satisfies it.
type Sender interface {
	Send(Email) error
}

// Dispatcher sends mail on behalf of request handlers. Delivery errors are
// logged and never returned, so a mail outage cannot fail a form submission.
// With async set, each message is sent from its own goroutine.
type Dispatcher struct {
	sender Sender
	async  bool
	log    *zap.Logger
	wg     sync.WaitGroup
}

// NewDispatcher wraps sender. A nil sender makes Dispatch a no-op.
func NewDispatcher(sender Sender, async bool, log *zap.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, async: async, log: log}
}

// Dispatch sends email according to the dispatcher's policy.
func (d *Dispatcher) Dispatch(email Email) {
	if d == nil || d.sender == nil {
		return
	}
	if !d.async {
		d.send(email)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(email)
	}()
}

// Wait blocks until every in-flight async send has returned.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) send(email Email) {
	if err := d.sender.Send(email); err != nil {
		d.log.Warn("email delivery failed",
			zap.String("to", email.To),
			zap.String("subject", email.Subject),
			zap.Error(err))
	}
}
