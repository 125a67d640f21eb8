package otp

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"
)

type fakeMailer struct {
	sent []sentMail
	fail bool
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

func newTestVerifier(t *testing.T, opts ...VerifierOption) (*Verifier, *MemoryStore, *fakeMailer) {
	t.Helper()
	store := NewMemoryStore()
	mailer := &fakeMailer{}
	v, err := NewVerifier(store, mailer, opts...)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v, store, mailer
}

var codeRe = regexp.MustCompile(`^\d{6}$`)

func TestSendStoresSixDigitCode(t *testing.T) {
	v, store, mailer := newTestVerifier(t)

	if err := v.Send(context.Background(), "a@gmail.com"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	rec, ok, err := store.Get(context.Background(), "a@gmail.com")
	if err != nil || !ok {
		t.Fatalf("expected stored record, ok=%v err=%v", ok, err)
	}
	if !codeRe.MatchString(rec.Code) {
		t.Fatalf("expected 6-digit numeric code, got %q", rec.Code)
	}
	if rec.Code < "100000" {
		t.Fatalf("code below range: %q", rec.Code)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].to != "a@gmail.com" {
		t.Fatalf("expected one dispatched mail, got %+v", mailer.sent)
	}
	if until := time.Until(rec.ExpiresAt); until < 9*time.Minute || until > 10*time.Minute {
		t.Fatalf("unexpected expiry window: %v", until)
	}
}

func TestSendRejectsDisallowedDomainBeforeGeneratingCode(t *testing.T) {
	v, store, mailer := newTestVerifier(t)

	if err := v.Send(context.Background(), "a@example.com"); !errors.Is(err, ErrDomainNotAllowed) {
		t.Fatalf("expected ErrDomainNotAllowed, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("no record should exist for a rejected domain")
	}
	if len(mailer.sent) != 0 {
		t.Fatal("no mail should be dispatched for a rejected domain")
	}
}

func TestSendOverwritesPriorCode(t *testing.T) {
	v, store, _ := newTestVerifier(t)

	if err := v.Send(context.Background(), "a@gmail.com"); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	first, _, _ := store.Get(context.Background(), "a@gmail.com")
	if err := v.Send(context.Background(), "a@gmail.com"); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected a single live record, got %d", store.Len())
	}
	second, _, _ := store.Get(context.Background(), "a@gmail.com")
	if !second.ExpiresAt.After(first.ExpiresAt) && second.Code == first.Code {
		t.Fatal("second send did not overwrite the first record")
	}
}

func TestSendRollsBackOnDispatchFailure(t *testing.T) {
	v, store, mailer := newTestVerifier(t)
	mailer.fail = true

	if err := v.Send(context.Background(), "a@gmail.com"); !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("stored code should be rolled back when dispatch fails")
	}
}

func TestVerifyLifecycle(t *testing.T) {
	v, store, _ := newTestVerifier(t)

	if err := v.Send(context.Background(), "a@gmail.com"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	rec, _, _ := store.Get(context.Background(), "a@gmail.com")

	// Wrong code: mismatch, record persists for retry.
	wrong := "000000"
	if wrong == rec.Code {
		wrong = "000001"
	}
	if err := v.Verify(context.Background(), "a@gmail.com", wrong); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatal("record must survive a mismatch")
	}

	// Right code: success, record consumed.
	if err := v.Verify(context.Background(), "a@gmail.com", rec.Code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("record must be removed after a successful verify")
	}

	// Replay: not found.
	if err := v.Verify(context.Background(), "a@gmail.com", rec.Code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound on replay, got %v", err)
	}
}

func TestVerifyExpiredCodeRemovesRecord(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }
	v, store, _ := newTestVerifier(t, WithClock(now))

	if err := v.Send(context.Background(), "a@gmail.com"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	rec, _, _ := store.Get(context.Background(), "a@gmail.com")

	current = current.Add(10*time.Minute + time.Second)
	if err := v.Verify(context.Background(), "a@gmail.com", rec.Code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("expired record must be removed on detection")
	}
}

func TestVerifyUnknownEmail(t *testing.T) {
	v, _, _ := newTestVerifier(t)
	if err := v.Verify(context.Background(), "a@gmail.com", "123456"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestVerifyRequiresCode(t *testing.T) {
	v, _, _ := newTestVerifier(t)
	if err := v.Verify(context.Background(), "a@gmail.com", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCustomDomainAllowList(t *testing.T) {
	v, _, _ := newTestVerifier(t, WithAllowedDomains([]string{"corp.example"}))
	if err := v.Send(context.Background(), "a@gmail.com"); !errors.Is(err, ErrDomainNotAllowed) {
		t.Fatalf("expected gmail to be rejected under custom list, got %v", err)
	}
	if err := v.Send(context.Background(), "a@corp.example"); err != nil {
		t.Fatalf("expected corp.example to be allowed: %v", err)
	}
}

func TestJanitorEvictsExpiredEntries(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	_ = store.Put(context.Background(), Record{Email: "old@gmail.com", Code: "111111", ExpiresAt: now.Add(-time.Minute)})
	_ = store.Put(context.Background(), Record{Email: "live@gmail.com", Code: "222222", ExpiresAt: now.Add(time.Minute)})

	store.evictExpired(now)

	if store.Len() != 1 {
		t.Fatalf("expected one surviving record, got %d", store.Len())
	}
	if _, ok, _ := store.Get(context.Background(), "live@gmail.com"); !ok {
		t.Fatal("live record was evicted")
	}
}
