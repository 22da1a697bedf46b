package accounts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sgalindo-dev/veriauth/internal/common"
	"github.com/sgalindo-dev/veriauth/internal/logging"
	"github.com/sgalindo-dev/veriauth/internal/server/auth"
	"github.com/sgalindo-dev/veriauth/internal/server/config"
)

// --- helpers ---

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

// fakeSender records every attempt and can be told to fail the next N sends.
type fakeSender struct {
	failNext int
	attempts int
	messages []sentMessage
}

func (f *fakeSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.attempts++
	if f.failNext > 0 {
		f.failNext--
		return errors.New("smtp: connection reset")
	}
	f.messages = append(f.messages, sentMessage{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                 "test-secret",
		VerificationTokenValidity: 24 * time.Hour,
		SessionTokenValidity:      7 * 24 * time.Hour,
		VerificationLinkBaseURL:   "http://localhost:5173",
	}
}

func newTestService(t *testing.T, repo Repository, sender *fakeSender) *Service {
	t.Helper()
	l := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewService(repo, sender, l, testConfig())
}

// tokenFromBody pulls the verification token out of the email link.
func tokenFromBody(t *testing.T, body string) string {
	t.Helper()
	idx := strings.Index(body, "token=")
	if idx < 0 {
		t.Fatalf("no token link in body:\n%s", body)
	}
	rest := body[idx+len("token="):]
	if end := strings.IndexAny(rest, "\"<\n "); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// --- Register ---

func TestRegister_NewAccount(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)

	account, err := s.Register(context.Background(), "alice", "pw1", "a@x.com")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if account.ID == "" || account.VerifiedEmail {
		t.Fatalf("expected unverified account with id, got %+v", account)
	}
	if sender.attempts != 1 || len(sender.messages) != 1 {
		t.Fatalf("expected exactly one send, got attempts=%d delivered=%d", sender.attempts, len(sender.messages))
	}
	if sender.messages[0].To != "a@x.com" {
		t.Fatalf("email sent to wrong recipient: %q", sender.messages[0].To)
	}
}

func TestRegister_UnverifiedEmailTwice_NoDuplicate(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)

	first, err := s.Register(context.Background(), "alice", "pw1", "a@x.com")
	if err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	second, err := s.Register(context.Background(), "alice", "pw1", "a@x.com")
	if err != nil {
		t.Fatalf("second Register error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("re-registration must reuse the existing account: %q vs %q", first.ID, second.ID)
	}
	if len(sender.messages) != 2 {
		t.Fatalf("expected one verification email per attempt, got %d", len(sender.messages))
	}

	tok1 := tokenFromBody(t, sender.messages[0].Body)
	tok2 := tokenFromBody(t, sender.messages[1].Body)
	if tok1 == tok2 {
		t.Fatalf("each attempt must carry a freshly issued token")
	}
}

func TestRegister_VerifiedEmail_Fails(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)

	account, err := s.Register(context.Background(), "alice", "pw1", "a@x.com")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := repo.SetEmailVerified(context.Background(), account.ID); err != nil {
		t.Fatalf("SetEmailVerified error: %v", err)
	}
	sender.attempts = 0

	_, err = s.Register(context.Background(), "bob", "pw2", "a@x.com")
	if !errors.Is(err, common.ErrEmailAlreadyRegistered) {
		t.Fatalf("want ErrEmailAlreadyRegistered, got %v", err)
	}
	if sender.attempts != 0 {
		t.Fatalf("no email may be sent for an already-verified address")
	}
}

func TestRegister_TransientSendFailure_RetriesOnce(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{failNext: 1}
	s := newTestService(t, repo, sender)

	_, err := s.Register(context.Background(), "alice", "pw1", "a@x.com")
	if err != nil {
		t.Fatalf("Register should succeed after retry, got %v", err)
	}
	if sender.attempts != 2 || len(sender.messages) != 1 {
		t.Fatalf("expected 2 attempts / 1 delivery, got %d/%d", sender.attempts, len(sender.messages))
	}
}

func TestRegister_PersistentSendFailure_KeepsAccount(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{failNext: 2}
	s := newTestService(t, repo, sender)

	_, err := s.Register(context.Background(), "alice", "pw1", "a@x.com")
	if !errors.Is(err, common.ErrNotificationDeliveryFailed) {
		t.Fatalf("want ErrNotificationDeliveryFailed, got %v", err)
	}
	if sender.attempts != 2 {
		t.Fatalf("exactly one extra attempt allowed, got %d attempts", sender.attempts)
	}

	// the account row survives the delivery failure
	account, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("account must still exist: %v", err)
	}
	if account.VerifiedEmail {
		t.Fatalf("account must stay unverified")
	}

	// a later resend can still succeed
	if err := s.ResendVerification(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("ResendVerification after failed register: %v", err)
	}
}

// racingRepo simulates losing the check-then-act race: the first lookup sees
// nothing, the create hits the unique constraint, and the second lookup sees
// the row the concurrent registration committed.
type racingRepo struct {
	inner   *InMemoryRepository
	lookups int
}

func (r *racingRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, common.ErrorNotFound
	}
	return r.inner.GetByEmail(ctx, email)
}

func (r *racingRepo) Create(ctx context.Context, account *Account) (*Account, error) {
	return nil, common.ErrDuplicateEmail
}

func (r *racingRepo) SetEmailVerified(ctx context.Context, accountID string) error {
	return r.inner.SetEmailVerified(ctx, accountID)
}

func TestRegister_LostCreateRace_ResolvesAsReRegistration(t *testing.T) {
	inner := NewInMemoryRepository()
	winner, err := inner.Create(context.Background(), &Account{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}

	sender := &fakeSender{}
	s := newTestService(t, &racingRepo{inner: inner}, sender)

	account, err := s.Register(context.Background(), "alice", "pw1", "a@x.com")
	if err != nil {
		t.Fatalf("Register must treat the duplicate as re-registration, got %v", err)
	}
	if account.ID != winner.ID {
		t.Fatalf("expected the concurrently created account, got %+v", account)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("expected one verification email, got %d", len(sender.messages))
	}
}

// --- VerifyEmail ---

func TestVerifyEmail_Success_UnblocksLogin(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)
	ctx := context.Background()

	account, err := s.Register(ctx, "alice", "pw1", "a@x.com")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if _, err := s.Login(ctx, "a@x.com", "pw1"); !errors.Is(err, common.ErrEmailNotVerified) {
		t.Fatalf("login before verification must fail with ErrEmailNotVerified, got %v", err)
	}

	token := tokenFromBody(t, sender.messages[0].Body)
	if err := s.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail error: %v", err)
	}

	sessionToken, err := s.Login(ctx, "a@x.com", "pw1")
	if err != nil {
		t.Fatalf("login after verification: %v", err)
	}
	claims, err := auth.ParseSessionToken(sessionToken, []byte("test-secret"))
	if err != nil {
		t.Fatalf("session token must decode: %v", err)
	}
	if claims.AccountID != account.ID || claims.Email != "a@x.com" || claims.Username != "alice" {
		t.Fatalf("session claims mismatch: %+v", claims)
	}
}

func TestVerifyEmail_TamperedToken(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "pw1", "a@x.com"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	token := tokenFromBody(t, sender.messages[0].Body)

	err := s.VerifyEmail(ctx, token+"x")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}

	account, err := repo.GetByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if account.VerifiedEmail {
		t.Fatalf("tampered token must not flip verified_email")
	}
}

func TestVerifyEmail_ExpiredToken(t *testing.T) {
	repo := NewInMemoryRepository()
	s := newTestService(t, repo, &fakeSender{})
	ctx := context.Background()

	account, err := repo.Create(ctx, &Account{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}

	expired, err := auth.GenerateVerificationToken("a@x.com", account.ID, []byte("test-secret"), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateVerificationToken error: %v", err)
	}

	if err := s.VerifyEmail(ctx, expired); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyEmail_Idempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "pw1", "a@x.com"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	token := tokenFromBody(t, sender.messages[0].Body)

	if err := s.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("first VerifyEmail error: %v", err)
	}
	if err := s.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("second VerifyEmail must be a no-op, got %v", err)
	}

	account, err := repo.GetByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if !account.VerifiedEmail {
		t.Fatalf("account must remain verified")
	}
}

// --- Login ---

func TestLogin_UnknownEmail(t *testing.T) {
	s := newTestService(t, NewInMemoryRepository(), &fakeSender{})

	_, err := s.Login(context.Background(), "ghost@x.com", "pw")
	if !errors.Is(err, common.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestLogin_UnverifiedBlocksRegardlessOfPassword(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "pw1", "a@x.com"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	for _, password := range []string{"pw1", "wrong"} {
		if _, err := s.Login(ctx, "a@x.com", password); !errors.Is(err, common.ErrEmailNotVerified) {
			t.Fatalf("password %q: want ErrEmailNotVerified, got %v", password, err)
		}
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)
	ctx := context.Background()

	account, err := s.Register(ctx, "alice", "pw1", "a@x.com")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := repo.SetEmailVerified(ctx, account.ID); err != nil {
		t.Fatalf("SetEmailVerified error: %v", err)
	}

	if _, err := s.Login(ctx, "a@x.com", "wrong"); !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
}

// --- ResendVerification ---

func TestResendVerification_UnknownEmail(t *testing.T) {
	s := newTestService(t, NewInMemoryRepository(), &fakeSender{})

	err := s.ResendVerification(context.Background(), "ghost@x.com")
	if !errors.Is(err, common.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestResendVerification_AlreadyVerified(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)
	ctx := context.Background()

	account, err := s.Register(ctx, "alice", "pw1", "a@x.com")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := repo.SetEmailVerified(ctx, account.ID); err != nil {
		t.Fatalf("SetEmailVerified error: %v", err)
	}
	sender.attempts = 0

	if err := s.ResendVerification(ctx, "a@x.com"); !errors.Is(err, common.ErrAlreadyVerified) {
		t.Fatalf("want ErrAlreadyVerified, got %v", err)
	}
	if sender.attempts != 0 {
		t.Fatalf("resend on a verified account must not send email")
	}
}

func TestResendVerification_IssuesFreshToken(t *testing.T) {
	repo := NewInMemoryRepository()
	sender := &fakeSender{}
	s := newTestService(t, repo, sender)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "pw1", "a@x.com"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := s.ResendVerification(ctx, "a@x.com"); err != nil {
		t.Fatalf("ResendVerification error: %v", err)
	}
	if len(sender.messages) != 2 {
		t.Fatalf("expected two delivered emails, got %d", len(sender.messages))
	}

	tok1 := tokenFromBody(t, sender.messages[0].Body)
	tok2 := tokenFromBody(t, sender.messages[1].Body)
	if tok1 == tok2 {
		t.Fatalf("resend must issue a token distinct from any prior one")
	}

	// both tokens remain valid until expiry
	if err := s.VerifyEmail(ctx, tok1); err != nil {
		t.Fatalf("older token must still verify: %v", err)
	}
}
