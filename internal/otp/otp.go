// Package otp issues and verifies short-lived numeric codes proving
// control of an email address during signup.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	defaultTTL    = 10 * time.Minute
	defaultDomain = "gmail.com"

	codeMin  = 100000
	codeSpan = 900000 // codes are uniform in [100000, 999999]
)

var (
	ErrInvalidInput     = errors.New("otp: invalid input")
	ErrDomainNotAllowed = errors.New("otp: email domain not allowed")
	ErrCodeNotFound     = errors.New("otp: code not found")
	ErrCodeExpired      = errors.New("otp: code expired")
	ErrCodeMismatch     = errors.New("otp: code mismatch")
	ErrDispatchFailed   = errors.New("otp: dispatch failed")
)

// Mailer delivers a verification code to its recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Verifier owns the issued -> {consumed, expired} lifecycle of codes.
// A code is usable at most once; a mismatch keeps the record so the
// user may retry until expiry.
type Verifier struct {
	store   Store
	mailer  Mailer
	now     func() time.Time
	ttl     time.Duration
	domains map[string]struct{}
}

// VerifierOption configures Verifier behavior.
type VerifierOption func(*Verifier)

// WithTTL overrides the code lifetime.
func WithTTL(ttl time.Duration) VerifierOption {
	return func(v *Verifier) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// WithAllowedDomains replaces the email domain allow-list.
func WithAllowedDomains(domains []string) VerifierOption {
	return func(v *Verifier) {
		if len(domains) == 0 {
			return
		}
		set := make(map[string]struct{}, len(domains))
		for _, d := range domains {
			d = strings.TrimSpace(strings.ToLower(d))
			if d != "" {
				set[d] = struct{}{}
			}
		}
		if len(set) > 0 {
			v.domains = set
		}
	}
}

// NewVerifier constructs a Verifier over the given store and mailer.
func NewVerifier(store Store, mailer Mailer, opts ...VerifierOption) (*Verifier, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	if mailer == nil {
		return nil, fmt.Errorf("%w: mailer is required", ErrInvalidInput)
	}
	v := &Verifier{
		store:   store,
		mailer:  mailer,
		now:     time.Now,
		ttl:     defaultTTL,
		domains: map[string]struct{}{defaultDomain: {}},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// TTL returns the configured code lifetime.
func (v *Verifier) TTL() time.Duration { return v.ttl }

// Send generates a fresh code for the email, overwriting any prior
// unconsumed code, and dispatches it. The domain gate runs before any
// code is generated; a dispatch failure rolls the stored code back and
// surfaces to the caller.
func (v *Verifier) Send(ctx context.Context, email string) error {
	email, err := v.normalize(email)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	rec := Record{
		Email:     email,
		Code:      code,
		ExpiresAt: v.now().UTC().Add(v.ttl),
	}
	if err := v.store.Put(ctx, rec); err != nil {
		return err
	}

	subject := "Your verification code"
	body := fmt.Sprintf("<p>Your verification code is <b>%s</b>. It expires in %d minutes.</p>",
		code, int(v.ttl.Minutes()))
	if err := v.mailer.Send(ctx, email, subject, body); err != nil {
		_ = v.store.Delete(ctx, email)
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	return nil
}

// Verify checks a submitted code. Outcomes: ErrCodeNotFound when no
// record exists, ErrCodeExpired (record removed) past the deadline,
// ErrCodeMismatch (record retained) on a wrong code, nil (record
// removed) on an exact match.
func (v *Verifier) Verify(ctx context.Context, email, code string) error {
	email, err := v.normalize(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	}

	rec, ok, err := v.store.Get(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeNotFound
	}
	if v.now().UTC().After(rec.ExpiresAt) {
		_ = v.store.Delete(ctx, email)
		return ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return ErrCodeMismatch
	}
	return v.store.Delete(ctx, email)
}

func (v *Verifier) normalize(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if _, ok := v.domains[email[at+1:]]; !ok {
		return "", ErrDomainNotAllowed
	}
	return email, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
