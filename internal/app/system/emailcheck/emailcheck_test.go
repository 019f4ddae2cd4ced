package emailcheck

import (
	"context"
	"errors"
	"net"
	"testing"
)

type fakeResolver struct {
	records []*net.MX
	err     error
}

func (f fakeResolver) LookupMX(context.Context, string) ([]*net.MX, error) {
	return f.records, f.err
}

func TestDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a@Example.COM", "example.com"},
		{"weird@name@host.org", "host.org"},
		{"nodomain@", ""},
		{"plain", ""},
	}
	for _, tt := range tests {
		if got := Domain(tt.in); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsDisposable(t *testing.T) {
	if !IsDisposable("x@Mailinator.com") {
		t.Error("mailinator.com should be disposable")
	}
	if IsDisposable("x@gmail.com") {
		t.Error("gmail.com should not be disposable")
	}
}

func TestChecker(t *testing.T) {
	ok := []*net.MX{{Host: "mx.example.com.", Pref: 10}}
	notFound := &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}
	timeout := &net.DNSError{Err: "i/o timeout", Name: "slow.example", IsTimeout: true}

	tests := []struct {
		name    string
		checker Checker
		email   string
		want    error
	}{
		{"disposable without mx", Checker{}, "a@yopmail.com", ErrDisposable},
		{"disposable with mx", Checker{CheckMX: true, Resolver: fakeResolver{records: ok}}, "a@yopmail.com", ErrDisposable},
		{"mx disabled", Checker{}, "a@nope.invalid", nil},
		{"mx found", Checker{CheckMX: true, Resolver: fakeResolver{records: ok}}, "a@example.com", nil},
		{"no records", Checker{CheckMX: true, Resolver: fakeResolver{}}, "a@example.com", ErrNoMX},
		{"nxdomain", Checker{CheckMX: true, Resolver: fakeResolver{err: notFound}}, "a@nope.invalid", ErrNoDomain},
		{"resolver outage allowed", Checker{CheckMX: true, Resolver: fakeResolver{err: timeout}}, "a@slow.example", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.checker.Check(context.Background(), tt.email)
			if !errors.Is(err, tt.want) {
				t.Errorf("Check(%q) = %v, want %v", tt.email, err, tt.want)
			}
		})
	}
}
