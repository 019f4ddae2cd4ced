// Package emailcheck rejects addresses that cannot be real mailboxes:
// disposable-mail domains, and optionally domains without MX records.
package emailcheck

import (
	"context"
	"errors"
	"net"
	"strings"
)

var (
	ErrDisposable = errors.New("Please use a valid email address. Temporary/disposable emails are not allowed.")
	ErrNoDomain   = errors.New("Email domain does not exist or cannot receive emails. Please check and try again.")
	ErrNoMX       = errors.New("Email domain does not appear to be valid. Please use a real email address.")
)

var disposableDomains = map[string]struct{}{
	"tempmail.com":      {},
	"throwaway.email":   {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"mailinator.com":    {},
	"trashmail.com":     {},
	"fakeinbox.com":     {},
	"yopmail.com":       {},
	"temp-mail.org":     {},
	"getnada.com":       {},
	"maildrop.cc":       {},
	"sharklasers.com":   {},
}

// Domain returns the lowercased part after the last "@", or "" when there is none.
func Domain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[i+1:]))
}

// IsDisposable reports whether email uses a known throwaway domain.
func IsDisposable(email string) bool {
	_, ok := disposableDomains[Domain(email)]
	return ok
}

// MXResolver is the subset of *net.Resolver used for MX checks.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Checker validates deliverability. The zero value only checks the
// disposable list.
type Checker struct {
	CheckMX  bool
	Resolver MXResolver // defaults to net.DefaultResolver
}

// Check returns nil when email looks deliverable. DNS failures other than a
// definite "no such host" are treated as deliverable so a resolver outage
// does not block signups.
func (c Checker) Check(ctx context.Context, email string) error {
	if IsDisposable(email) {
		return ErrDisposable
	}
	if !c.CheckMX {
		return nil
	}
	domain := Domain(email)
	if domain == "" {
		return ErrNoDomain
	}

	res := c.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	records, err := res.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return ErrNoDomain
		}
		return nil
	}
	if len(records) == 0 {
		return ErrNoMX
	}
	return nil
}
