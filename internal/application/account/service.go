package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storefront-api/internal/application/verification"
	"github.com/storefront-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	fieldUsername     = "username"
	fieldEmail        = "email"
	fieldPasswordHash = "password_hash"
)

// Service implements the credential and deletion self-service workflows.
// Each one walks the same path: check preconditions, issue a code, email it,
// then validate the echoed code and apply the mutation.
type Service interface {
	RequestUsernameChange(ctx context.Context, userID, newUsername, password string) error
	ChangeUsername(ctx context.Context, userID, newUsername, submittedCode string) (string, error)
	RequestEmailChange(ctx context.Context, userID, newEmail, password string) error
	VerifyEmailChange(ctx context.Context, userID, submittedCode string) (string, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	RequestDeletion(ctx context.Context, userID, password string) error
	ConfirmDeletion(ctx context.Context, userID, submittedCode, reason string) error
	ResendVerification(ctx context.Context, userID string, action domain.VerificationAction) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID string) error
}

type profileStore interface {
	GetByUser(ctx context.Context, userID string) (*domain.Profile, error)
	Delete(ctx context.Context, profileID string) error
}

type sessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

type mailer interface {
	Send(to, subject, textBody, htmlBody string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	users    userStore
	profiles profileStore
	sessions sessionStore
	verifier verification.Service
	mailer   mailer
	sms      smsSender // may be nil

	adminEmail    string
	opsAlertPhone string
}

type ServiceDeps struct {
	UserRepo      userStore
	ProfileRepo   profileStore
	SessionRepo   sessionStore
	Verifier      verification.Service
	Mailer        mailer
	SMSSender     smsSender
	AdminEmail    string
	OpsAlertPhone string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:         deps.UserRepo,
		profiles:      deps.ProfileRepo,
		sessions:      deps.SessionRepo,
		verifier:      deps.Verifier,
		mailer:        deps.Mailer,
		sms:           deps.SMSSender,
		adminEmail:    deps.AdminEmail,
		opsAlertPhone: deps.OpsAlertPhone,
	}
}

func (s *service) RequestUsernameChange(ctx context.Context, userID, newUsername, password string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := checkPassword(u, password); err != nil {
		return err
	}
	if other, err := s.users.GetByUsername(ctx, newUsername); err == nil && other.UserID != userID {
		return fmt.Errorf("username already taken: %w", domain.ErrConflict)
	}
	c, err := s.verifier.Issue(ctx, userID, domain.ActionUsername, "")
	if err != nil {
		return err
	}
	// Without this email the user cannot finish the change, so a send
	// failure fails the request.
	if err := s.sendCode(u.Email, domain.ActionUsername, c); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (s *service) ChangeUsername(ctx context.Context, userID, newUsername, submittedCode string) (string, error) {
	if _, err := s.verifier.Validate(ctx, userID, submittedCode, domain.ActionUsername); err != nil {
		return "", err
	}
	if other, err := s.users.GetByUsername(ctx, newUsername); err == nil && other.UserID != userID {
		return "", fmt.Errorf("username already taken: %w", domain.ErrConflict)
	}
	if err := s.users.Update(ctx, userID, map[string]interface{}{fieldUsername: newUsername}); err != nil {
		return "", err
	}
	s.clearToken(ctx, userID)
	return newUsername, nil
}

func (s *service) RequestEmailChange(ctx context.Context, userID, newEmail, password string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := checkPassword(u, password); err != nil {
		return err
	}
	if other, err := s.users.GetByEmail(ctx, newEmail); err == nil && other.UserID != userID {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	c, err := s.verifier.Issue(ctx, userID, domain.ActionEmail, newEmail)
	if err != nil {
		return err
	}
	// The code goes to the NEW address to prove the user controls it.
	if err := s.sendCode(newEmail, domain.ActionEmail, c); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (s *service) VerifyEmailChange(ctx context.Context, userID, submittedCode string) (string, error) {
	rec, err := s.verifier.Validate(ctx, userID, submittedCode, domain.ActionEmail)
	if err != nil {
		return "", err
	}
	if rec.NewEmail == "" {
		return "", domain.ErrTokenFormat
	}
	if other, err := s.users.GetByEmail(ctx, rec.NewEmail); err == nil && other.UserID != userID {
		return "", fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	if err := s.users.Update(ctx, userID, map[string]interface{}{fieldEmail: rec.NewEmail}); err != nil {
		return "", err
	}
	s.clearToken(ctx, userID)
	return rec.NewEmail, nil
}

func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := checkPassword(u, currentPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: string(hash)})
}

func (s *service) RequestDeletion(ctx context.Context, userID, password string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	// Federated accounts have no local password; the emailed code is the
	// only gate for them.
	if !u.IsFederated() {
		if password == "" {
			return fmt.Errorf("password required: %w", domain.ErrBadRequest)
		}
		if err := checkPassword(u, password); err != nil {
			return err
		}
	}
	c, err := s.verifier.Issue(ctx, userID, domain.ActionAccountDeletion, "")
	if err != nil {
		return err
	}
	if err := s.sendCode(u.Email, domain.ActionAccountDeletion, c); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (s *service) ConfirmDeletion(ctx context.Context, userID, submittedCode, reason string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.verifier.Validate(ctx, userID, submittedCode, domain.ActionAccountDeletion); err != nil {
		return err
	}

	// Cascade: the profile goes first. If that fails the user record is
	// still removed; an orphaned profile is recoverable, a half-deleted
	// account is not.
	if p, err := s.profiles.GetByUser(ctx, userID); err == nil {
		if err := s.profiles.Delete(ctx, p.ProfileID); err != nil {
			slog.Warn("failed to delete profile during account deletion", "user_id", userID, "profile_id", p.ProfileID, "err", err)
		}
	}
	if err := s.sessions.DisableByUser(ctx, userID); err != nil {
		slog.Warn("failed to disable sessions during account deletion", "user_id", userID, "err", err)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	// Everything from here on is courtesy notification; the account is
	// already gone and nothing rolls back.
	s.sendDeletionFeedback(ctx, u, reason)
	return nil
}

func (s *service) ResendVerification(ctx context.Context, userID string, action domain.VerificationAction) error {
	if !action.Valid() {
		return fmt.Errorf("unknown verification action %q: %w", action, domain.ErrBadRequest)
	}
	rec, err := s.verifier.Resend(ctx, userID, action)
	if err != nil {
		return err
	}
	to := rec.NewEmail
	if to == "" {
		u, err := s.users.Get(ctx, userID)
		if err != nil {
			return err
		}
		to = u.Email
	}
	if err := s.sendCode(to, action, rec.Code); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (s *service) sendDeletionFeedback(ctx context.Context, u *domain.User, reason string) {
	if s.adminEmail == "" {
		slog.Error("ADMIN_EMAIL not configured, dropping account deletion feedback", "user_id", u.UserID)
	} else {
		text := fmt.Sprintf("Account %s (%s) was deleted.", u.Username, u.Email)
		if reason != "" {
			text += "\n\nReason given:\n" + reason
		}
		if err := s.mailer.Send(s.adminEmail, "Account deleted: "+u.Username, text, ""); err != nil {
			slog.Warn("failed to send deletion feedback", "user_id", u.UserID, "err", err)
		}
	}
	if err := s.mailer.Send(u.Email, "Your account has been deleted",
		"Your account and profile have been removed. We're sorry to see you go.", ""); err != nil {
		slog.Warn("failed to send deletion confirmation", "user_id", u.UserID, "err", err)
	}
	if s.sms != nil && s.opsAlertPhone != "" {
		if err := s.sms.SendSMS(ctx, s.opsAlertPhone, "Account deleted: "+u.Username); err != nil {
			slog.Warn("failed to send deletion ops alert", "user_id", u.UserID, "err", err)
		}
	}
}

func (s *service) sendCode(to string, action domain.VerificationAction, c string) error {
	subject, intro := codeEmailCopy(action)
	text := fmt.Sprintf("%s\n\nYour verification code is: %s\n\nIt expires in 15 minutes.", intro, c)
	html := fmt.Sprintf("<p>%s</p><p>Your verification code is: <strong>%s</strong></p><p>It expires in 15 minutes.</p>", intro, c)
	return s.mailer.Send(to, subject, text, html)
}

func (s *service) clearToken(ctx context.Context, userID string) {
	if err := s.verifier.Clear(ctx, userID); err != nil {
		slog.Warn("failed to clear verification token", "user_id", userID, "err", err)
	}
}

func codeEmailCopy(action domain.VerificationAction) (subject, intro string) {
	switch action {
	case domain.ActionUsername:
		return "Confirm your username change", "You asked to change your username."
	case domain.ActionEmail:
		return "Confirm your new email address", "You asked to change your email address."
	default:
		return "Confirm your account deletion", "You asked to delete your account."
	}
}

func checkPassword(u *domain.User, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("%w", domain.ErrWrongPassword)
	}
	return nil
}
