// internal/app/system/authflow/service.go
package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/juhiii45/EcoReborn/internal/app/store/loginattempts"
	"github.com/juhiii45/EcoReborn/internal/app/store/passwordreset"
	userstore "github.com/juhiii45/EcoReborn/internal/app/store/users"
	"github.com/juhiii45/EcoReborn/internal/app/system/auditlog"
	"github.com/juhiii45/EcoReborn/internal/app/system/authutil"
	"github.com/juhiii45/EcoReborn/internal/app/system/mailer"
	"github.com/juhiii45/EcoReborn/internal/app/system/normalize"
	"github.com/juhiii45/EcoReborn/internal/app/system/txn"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Notifier delivers transactional email. *mailer.Mailer satisfies it.
type Notifier interface {
	Send(mailer.Email) error
}

// Config is the lockout and notification policy.
type Config struct {
	MaxFailures int           // failures in Window that lock the email; default 5
	Window      time.Duration // rolling window; default 15m
	ResetTTL    time.Duration // reset token lifetime; default 1h
	BaseURL     string        // absolute site URL used in emailed links
	AppName     string        // shown in emails; default "Ecoreborn"
	AsyncMail   bool          // send mail off the request path
}

func (c Config) withDefaults() Config {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = time.Hour
	}
	if c.AppName == "" {
		c.AppName = models.DefaultSiteName
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Service runs the signup, login, logout and password reset workflows.
// Inputs are expected to be validated already; Service only normalizes them.
type Service struct {
	db       *mongo.Database
	users    *userstore.Store
	attempts *loginattempts.Store
	resets   *passwordreset.Store
	mail     *mailer.Dispatcher
	audit    *auditlog.Logger
	cfg      Config
	log      *zap.Logger
}

// New wires a Service. audit may be nil.
func New(db *mongo.Database, users *userstore.Store, attempts *loginattempts.Store, resets *passwordreset.Store,
	notifier Notifier, audit *auditlog.Logger, cfg Config, log *zap.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		db:       db,
		users:    users,
		attempts: attempts,
		resets:   resets,
		mail:     mailer.NewDispatcher(notifier, cfg.AsyncMail, log),
		audit:    audit,
		cfg:      cfg,
		log:      log,
	}
}

// Policy returns the effective lockout policy.
func (s *Service) Policy() (maxFailures int, window time.Duration) {
	return s.cfg.MaxFailures, s.cfg.Window
}

// WaitForMail blocks until asynchronously dispatched mail has been handed to
// the notifier. Used at shutdown and in tests.
func (s *Service) WaitForMail() {
	s.mail.Wait()
}

// Client aliases the audit metadata so callers need one import.
type Client = auditlog.Client

// SignupInput is a validated signup form.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Client   Client
}

// Signup creates an active user that can log in immediately.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	u, err := s.users.Create(ctx, userstore.CreateInput{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Role:     models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.Signup(ctx, in.Client, u.ID, u.Email)
	s.log.Info("user signed up", zap.String("user_id", u.ID.Hex()))
	return u, nil
}

// LoginInput is a validated login form plus client metadata.
type LoginInput struct {
	Email    string
	Password string
	Client   Client
}

// Login checks the lockout policy, then the credentials.
//
// A locked email is rejected before the user is looked up and no attempt is
// recorded. Every other failure records exactly one failed attempt.
func (s *Service) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	email := normalize.Email(in.Email)

	failed, err := s.attempts.RecentFailedCount(ctx, email, s.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("count failed attempts: %w", err)
	}
	if failed >= s.cfg.MaxFailures {
		s.audit.LoginLockedOut(ctx, in.Client, email, failed)
		return nil, ErrLocked
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, userstore.ErrNotFound) {
			return nil, fmt.Errorf("find user: %w", err)
		}
		// Spend the same bcrypt time as a real comparison.
		authutil.CheckDummy(in.Password)
		if err := s.recordFailure(ctx, email, in.Client.IP); err != nil {
			return nil, err
		}
		s.audit.LoginFailedUserNotFound(ctx, in.Client, email)
		return nil, s.credentialsError(failed)
	}

	match := authutil.CheckPassword(in.Password, u.PasswordHash)
	if !match || !u.Active {
		if err := s.recordFailure(ctx, email, in.Client.IP); err != nil {
			return nil, err
		}
		if !u.Active {
			s.audit.LoginFailedUserDisabled(ctx, in.Client, u.ID, email)
		} else {
			s.audit.LoginFailedWrongPassword(ctx, in.Client, u.ID, email, failed+1)
		}
		return nil, s.credentialsError(failed)
	}

	if err := s.attempts.Record(ctx, email, true, in.Client.IP); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	if err := s.attempts.Clear(ctx, email); err != nil {
		return nil, fmt.Errorf("clear attempts: %w", err)
	}
	if err := s.users.TouchLastLogin(ctx, email); err != nil {
		// The login itself succeeded; a stale last_login is not worth failing it.
		s.log.Warn("update last_login failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	} else {
		now := time.Now().UTC()
		u.LastLogin = &now
	}

	s.audit.LoginSuccess(ctx, in.Client, u.ID, email)
	return u, nil
}

func (s *Service) recordFailure(ctx context.Context, email, ip string) error {
	if err := s.attempts.Record(ctx, email, false, ip); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (s *Service) credentialsError(failedBefore int) *CredentialsError {
	remaining := s.cfg.MaxFailures - (failedBefore + 1)
	if remaining < 0 {
		remaining = 0
	}
	return &CredentialsError{Remaining: remaining}
}

// Logout records the event. The session itself is destroyed by the caller.
func (s *Service) Logout(ctx context.Context, c Client, userID, email string) {
	s.audit.Logout(ctx, c, userID, email)
	s.log.Info("user logged out", zap.String("user_id", userID))
}

// ForgotPassword issues a reset token and mails the link when the email has
// an account. It reports nothing to the caller: errors are logged here so the
// response cannot differ between known and unknown addresses.
func (s *Service) ForgotPassword(ctx context.Context, email string, c Client) {
	email = normalize.Email(email)

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, userstore.ErrNotFound) {
			s.log.Error("forgot password: find user", zap.Error(err))
		}
		return
	}

	rt, err := s.resets.Issue(ctx, u.ID)
	if err != nil {
		s.log.Error("forgot password: issue token", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		return
	}

	text, html := mailer.PasswordResetEmail(mailer.PasswordResetEmailData{
		AppName:   s.cfg.AppName,
		UserName:  u.Name,
		ResetURL:  s.cfg.BaseURL + "/reset-password/" + rt.Token,
		ExpiryMin: int(s.cfg.ResetTTL / time.Minute),
	})
	s.mail.Dispatch(mailer.Email{
		To:       u.Email,
		Subject:  "Password Reset Request - " + s.cfg.AppName,
		TextBody: text,
		HTMLBody: html,
	})

	s.audit.PasswordResetRequested(ctx, c, u.ID, u.Email)
}

// CheckResetToken reports whether token may be used to set a new password.
func (s *Service) CheckResetToken(ctx context.Context, token string) (*models.ResetToken, error) {
	rt, err := s.resets.FindValid(ctx, token)
	if err != nil {
		if errors.Is(err, passwordreset.ErrInvalidToken) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return rt, nil
}

// ResetPassword sets a new password and consumes the token. The token is
// consumed conditionally first, so of two racing resets only one proceeds.
// If the password update then fails the token is released again; inside a
// transaction the abort does the same.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string, c Client) error {
	rt, err := s.CheckResetToken(ctx, token)
	if err != nil {
		return err
	}

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if err := s.resets.Consume(ctx, token); err != nil {
			return err
		}
		if err := s.users.UpdatePassword(ctx, rt.UserID, newPassword); err != nil {
			if rerr := s.resets.Release(ctx, token); rerr != nil {
				s.log.Warn("release reset token failed", zap.Error(rerr))
			}
			return err
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, passwordreset.ErrInvalidToken):
		return ErrInvalidOrExpiredToken
	case errors.Is(err, userstore.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("reset password: %w", err)
	}

	s.audit.PasswordResetCompleted(ctx, c, rt.UserID)

	if u, err := s.users.FindByID(ctx, rt.UserID); err == nil {
		text, html := mailer.PasswordChangedEmail(mailer.PasswordChangedEmailData{
			AppName:   s.cfg.AppName,
			UserName:  u.Name,
			ForgotURL: s.cfg.BaseURL + "/forgot-password",
		})
		s.mail.Dispatch(mailer.Email{
			To:       u.Email,
			Subject:  "Your " + s.cfg.AppName + " password was changed",
			TextBody: text,
			HTMLBody: html,
		})
	}
	return nil
}
