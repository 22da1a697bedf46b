// Package accounts contains the account domain: the persisted Account
// record, its repositories, and the Service orchestrating registration,
// email verification, login, and verification resend.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sgalindo-dev/veriauth/internal/common"
	"github.com/sgalindo-dev/veriauth/internal/cryptox"
	"github.com/sgalindo-dev/veriauth/internal/logging"
	"github.com/sgalindo-dev/veriauth/internal/server/auth"
	"github.com/sgalindo-dev/veriauth/internal/server/config"
	"github.com/sgalindo-dev/veriauth/internal/server/mail"
)

type Service struct {
	repo                      Repository
	sender                    mail.Sender
	logger                    logging.Logger
	jwtSecret                 []byte
	verificationTokenValidity time.Duration
	sessionTokenValidity      time.Duration
	verificationLinkBase      string
}

func NewService(repo Repository, sender mail.Sender, l logging.Logger, cfg *config.Config) *Service {
	return &Service{
		repo:                      repo,
		sender:                    sender,
		logger:                    l.With("module", "accounts"),
		jwtSecret:                 []byte(cfg.SecretKey),
		verificationTokenValidity: cfg.VerificationTokenValidity,
		sessionTokenValidity:      cfg.SessionTokenValidity,
		verificationLinkBase:      cfg.VerificationLinkBaseURL,
	}
}

// Register creates a new unverified account and sends it a verification
// email. Registering an email that already has an unverified account does
// not create a duplicate: the existing account gets a fresh verification
// email and the call succeeds, so clients can simply retry registration
// when the first email never arrived. A verified email fails with
// ErrEmailAlreadyRegistered.
//
// When a concurrent registration wins the create race, the store's unique
// constraint on email reports ErrDuplicateEmail and Register re-resolves
// through the lookup branch instead of failing.
//
// A failed email delivery does not roll the account back; the row stays and
// ErrNotificationDeliveryFailed is returned.
func (s *Service) Register(ctx context.Context, username, password, email string) (*Account, error) {

	for attempt := 0; ; attempt++ {

		account, err := s.repo.GetByEmail(ctx, email)
		if err == nil {
			if account.VerifiedEmail {
				return nil, common.ErrEmailAlreadyRegistered
			}
			// Re-registration: refresh the verification email for the
			// existing account. No new account, no re-hash.
			s.logger.Info(ctx, "re-registration for unverified account, resending verification email", "email", email)
			if err := s.SendVerificationEmail(ctx, account.Username, account.Email, account.ID); err != nil {
				return nil, err
			}
			return account, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "account lookup failed", "error", err.Error())
			return nil, common.ErrorInternal
		}

		hash, err := cryptox.HashPassword(password)
		if err != nil {
			return nil, common.ErrorInternal
		}

		account, err = s.repo.Create(ctx, &Account{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
		})
		if err != nil {
			if errors.Is(err, common.ErrDuplicateEmail) && attempt == 0 {
				// Lost the check-then-act race; the row now exists, so
				// re-dispatch into the lookup branch above.
				continue
			}
			s.logger.Error(ctx, "account creation failed", "error", err.Error())
			return nil, common.ErrorInternal
		}

		if err := s.SendVerificationEmail(ctx, username, email, account.ID); err != nil {
			// The account stays: losing the email must not lose the account.
			return nil, err
		}
		return account, nil
	}
}

// SendVerificationEmail signs a fresh verification token for the
// email/account pairing, builds the verification link and delivers the
// notification. Delivery gets exactly one immediate re-attempt; if the
// second attempt also fails the error surfaces as
// ErrNotificationDeliveryFailed.
func (s *Service) SendVerificationEmail(ctx context.Context, username, email, accountID string) error {

	token, err := auth.GenerateVerificationToken(email, accountID, s.jwtSecret, s.verificationTokenValidity)
	if err != nil {
		// missing/invalid secret is a configuration error, not an auth error
		return err
	}

	link := fmt.Sprintf("%s/verify-email?token=%s", s.verificationLinkBase, token)
	subject, body := buildVerificationEmail(username, link)

	backoff := retry.WithMaxRetries(1, retry.BackoffFunc(func() (time.Duration, bool) {
		return 0, false
	}))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if sendErr := s.sender.Send(ctx, email, subject, body); sendErr != nil {
			s.logger.Warn(ctx, "verification email send failed", "email", email, "error", sendErr.Error())
			return retry.RetryableError(sendErr)
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "verification email delivery failed after retry", "email", email)
		return common.ErrNotificationDeliveryFailed
	}

	s.logger.Info(ctx, "verification email sent", "email", email)
	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
// The update is a pure set of verified_email, so verifying an
// already-verified account is a harmless no-op. Any token problem
// (signature, payload, expiry) surfaces as ErrInvalidToken.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {

	claims, err := auth.ParseVerificationToken(token, s.jwtSecret)
	if err != nil {
		return err
	}

	if err := s.repo.SetEmailVerified(ctx, claims.AccountID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		s.logger.Error(ctx, "marking account verified failed", "account_id", claims.AccountID, "error", err.Error())
		return common.ErrorInternal
	}

	s.logger.Info(ctx, "email verified", "account_id", claims.AccountID)
	return nil
}

// Login checks credentials and returns a signed session token. The checks
// run in strict order: unknown email → ErrAccountNotFound, unverified email
// → ErrEmailNotVerified, wrong password → ErrInvalidCredentials. Note that
// verification status is reported before the password is checked, so an
// unverified account never learns whether a password guess was correct.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrAccountNotFound
		}
		s.logger.Error(ctx, "account lookup failed", "error", err.Error())
		return "", common.ErrorInternal
	}

	if !account.VerifiedEmail {
		return "", common.ErrEmailNotVerified
	}

	ok, err := cryptox.CheckPassword(password, account.PasswordHash)
	if err != nil {
		return "", common.ErrorInternal
	}
	if !ok {
		return "", common.ErrInvalidCredentials
	}

	return auth.GenerateSessionToken(account.ID, account.Username, account.Email, s.jwtSecret, s.sessionTokenValidity)
}

// ResendVerification re-sends the verification email for a known,
// still-unverified account. Unknown email → ErrAccountNotFound; already
// verified → ErrAlreadyVerified.
func (s *Service) ResendVerification(ctx context.Context, email string) error {

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		s.logger.Error(ctx, "account lookup failed", "error", err.Error())
		return common.ErrorInternal
	}

	if account.VerifiedEmail {
		return common.ErrAlreadyVerified
	}

	return s.SendVerificationEmail(ctx, account.Username, account.Email, account.ID)
}

func buildVerificationEmail(username, link string) (subject, html string) {
	subject = "Verify your email address"
	html = fmt.Sprintf(`<h1>Hi %s</h1>
<p>Click the button below to verify your email address:</p>
<a href=%q style="padding:10px 20px;background:#4CAF50;color:#fff;border-radius:4px;text-decoration:none;">Verify email</a>
<p>Or copy this link:</p>
<p>%s</p>`, username, link, link)
	return subject, html
}
