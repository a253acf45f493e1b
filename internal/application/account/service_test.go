package account

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/storefront-api/internal/application/verification"
	"github.com/storefront-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- fakes ---

// fakeUserStore backs both the account service and the verification token
// store, mirroring production where both live on the same user item.
type fakeUserStore struct {
	users     map[string]*domain.User
	deleteErr error
	ops       *[]string // shared op log for cascade-order assertions
}

func newFakeUserStore(ops *[]string, users ...*domain.User) *fakeUserStore {
	f := &fakeUserStore{users: map[string]*domain.User{}, ops: ops}
	for _, u := range users {
		f.users[u.UserID] = u
	}
	return f
}

func (f *fakeUserStore) Get(_ context.Context, userID string) (*domain.User, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
}

func (f *fakeUserStore) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		switch k {
		case "username":
			u.Username = v.(string)
		case "email":
			u.Email = v.(string)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "verification_token":
			u.VerificationToken = v.(string)
		}
	}
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.users, userID)
	*f.ops = append(*f.ops, "user:"+userID)
	return nil
}

func (f *fakeUserStore) VerificationToken(ctx context.Context, userID string) (string, error) {
	u, err := f.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.VerificationToken, nil
}

func (f *fakeUserStore) SaveVerificationToken(ctx context.Context, userID, raw string) error {
	return f.Update(ctx, userID, map[string]interface{}{"verification_token": raw})
}

func (f *fakeUserStore) ClearVerificationToken(ctx context.Context, userID string) error {
	return f.Update(ctx, userID, map[string]interface{}{"verification_token": ""})
}

type fakeProfileStore struct {
	profiles  map[string]*domain.Profile // by user ID
	deleteErr error
	ops       *[]string
}

func (f *fakeProfileStore) GetByUser(_ context.Context, userID string) (*domain.Profile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
}

func (f *fakeProfileStore) Delete(_ context.Context, profileID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for uid, p := range f.profiles {
		if p.ProfileID == profileID {
			delete(f.profiles, uid)
		}
	}
	*f.ops = append(*f.ops, "profile:"+profileID)
	return nil
}

type fakeSessionStore struct{ disabled []string }

func (f *fakeSessionStore) DisableByUser(_ context.Context, userID string) error {
	f.disabled = append(f.disabled, userID)
	return nil
}

type sentEmail struct {
	To      string
	Subject string
	Text    string
}

type fakeMailer struct {
	sent   []sentEmail
	failTo map[string]bool
}

func (f *fakeMailer) Send(to, subject, textBody, _ string) error {
	if f.failTo[to] {
		return errors.New("smtp: connection refused")
	}
	f.sent = append(f.sent, sentEmail{To: to, Subject: subject, Text: textBody})
	return nil
}

type fakeSMS struct{ sent []string }

func (f *fakeSMS) SendSMS(_ context.Context, to, message string) error {
	f.sent = append(f.sent, to+": "+message)
	return nil
}

// --- helpers ---

type fixture struct {
	svc      Service
	users    *fakeUserStore
	profiles *fakeProfileStore
	sessions *fakeSessionStore
	mailer   *fakeMailer
	sms      *fakeSMS
	ops      []string
}

func newFixture(t *testing.T, users ...*domain.User) *fixture {
	t.Helper()
	fx := &fixture{mailer: &fakeMailer{failTo: map[string]bool{}}, sms: &fakeSMS{}}
	fx.users = newFakeUserStore(&fx.ops, users...)
	fx.profiles = &fakeProfileStore{profiles: map[string]*domain.Profile{}, ops: &fx.ops}
	fx.sessions = &fakeSessionStore{}
	fx.svc = NewService(ServiceDeps{
		UserRepo:      fx.users,
		ProfileRepo:   fx.profiles,
		SessionRepo:   fx.sessions,
		Verifier:      verification.NewService(fx.users),
		Mailer:        fx.mailer,
		SMSSender:     fx.sms,
		AdminEmail:    "admin@example.com",
		OpsAlertPhone: "+15550001111",
	})
	return fx
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func localUser(t *testing.T) *domain.User {
	t.Helper()
	return &domain.User{
		UserID:       "u1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: hash(t, "hunter22"),
		AuthProvider: domain.AuthProviderLocal,
		Enable:       1,
	}
}

// storedCode reads the pending verification code straight off the user record.
func storedCode(t *testing.T, fx *fixture, userID string) string {
	t.Helper()
	rec, err := domain.ParseTokenRecord(fx.users.users[userID].VerificationToken)
	require.NoError(t, err)
	return rec.Code
}

// --- username change ---

func TestRequestUsernameChange_WrongPassword(t *testing.T) {
	fx := newFixture(t, localUser(t))
	err := fx.svc.RequestUsernameChange(context.Background(), "u1", "bob123", "nope")
	assert.ErrorIs(t, err, domain.ErrWrongPassword)
	assert.Empty(t, fx.mailer.sent)
	assert.Empty(t, fx.users.users["u1"].VerificationToken)
}

func TestRequestUsernameChange_DuplicateUsername(t *testing.T) {
	other := &domain.User{UserID: "u2", Username: "bob123", Email: "bob@example.com"}
	fx := newFixture(t, localUser(t), other)
	err := fx.svc.RequestUsernameChange(context.Background(), "u1", "bob123", "hunter22")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUsernameChange_FullFlow(t *testing.T) {
	fx := newFixture(t, localUser(t))

	require.NoError(t, fx.svc.RequestUsernameChange(context.Background(), "u1", "bob123", "hunter22"))
	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, "alice@example.com", fx.mailer.sent[0].To)

	c := storedCode(t, fx, "u1")
	require.Len(t, c, 6)
	assert.Contains(t, fx.mailer.sent[0].Text, c)

	got, err := fx.svc.ChangeUsername(context.Background(), "u1", "bob123", c)
	require.NoError(t, err)
	assert.Equal(t, "bob123", got)
	assert.Equal(t, "bob123", fx.users.users["u1"].Username)
	assert.Empty(t, fx.users.users["u1"].VerificationToken)
}

func TestChangeUsername_WrongCode(t *testing.T) {
	fx := newFixture(t, localUser(t))
	require.NoError(t, fx.svc.RequestUsernameChange(context.Background(), "u1", "bob123", "hunter22"))

	wrong := "000000"
	if storedCode(t, fx, "u1") == wrong {
		wrong = "000001"
	}
	_, err := fx.svc.ChangeUsername(context.Background(), "u1", "bob123", wrong)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	assert.Equal(t, "alice", fx.users.users["u1"].Username)
}

func TestRequestUsernameChange_InitialEmailFailureIsFatal(t *testing.T) {
	fx := newFixture(t, localUser(t))
	fx.mailer.failTo["alice@example.com"] = true
	err := fx.svc.RequestUsernameChange(context.Background(), "u1", "bob123", "hunter22")
	assert.ErrorContains(t, err, "send verification email")
}

// --- email change ---

func TestEmailChange_FullFlow(t *testing.T) {
	fx := newFixture(t, localUser(t))

	require.NoError(t, fx.svc.RequestEmailChange(context.Background(), "u1", "new@example.com", "hunter22"))
	// Code goes to the address being claimed.
	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, "new@example.com", fx.mailer.sent[0].To)

	rec, err := domain.ParseTokenRecord(fx.users.users["u1"].VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", rec.NewEmail)

	email, err := fx.svc.VerifyEmailChange(context.Background(), "u1", rec.Code)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", email)
	assert.Equal(t, "new@example.com", fx.users.users["u1"].Email)
	assert.Empty(t, fx.users.users["u1"].VerificationToken)
}

func TestRequestEmailChange_DuplicateEmail(t *testing.T) {
	other := &domain.User{UserID: "u2", Username: "bob", Email: "new@example.com"}
	fx := newFixture(t, localUser(t), other)
	err := fx.svc.RequestEmailChange(context.Background(), "u1", "new@example.com", "hunter22")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestVerifyEmailChange_SwitchedActionInvalidatesToken(t *testing.T) {
	fx := newFixture(t, localUser(t))
	require.NoError(t, fx.svc.RequestEmailChange(context.Background(), "u1", "new@example.com", "hunter22"))
	first := storedCode(t, fx, "u1")

	// Starting a deletion mid-flight silently supersedes the email token.
	require.NoError(t, fx.svc.RequestDeletion(context.Background(), "u1", "hunter22"))

	_, err := fx.svc.VerifyEmailChange(context.Background(), "u1", first)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeMismatch) || errors.Is(err, domain.ErrWrongAction))
}

// --- password change ---

func TestChangePassword_WrongCurrent(t *testing.T) {
	fx := newFixture(t, localUser(t))
	err := fx.svc.ChangePassword(context.Background(), "u1", "nope", "newpassword1")
	assert.ErrorIs(t, err, domain.ErrWrongPassword)
}

func TestChangePassword_HappyPath(t *testing.T) {
	fx := newFixture(t, localUser(t))
	require.NoError(t, fx.svc.ChangePassword(context.Background(), "u1", "hunter22", "newpassword1"))
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(fx.users.users["u1"].PasswordHash), []byte("newpassword1")))
}

// --- account deletion ---

func TestRequestDeletion_LocalRequiresPassword(t *testing.T) {
	fx := newFixture(t, localUser(t))
	err := fx.svc.RequestDeletion(context.Background(), "u1", "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRequestDeletion_FederatedSkipsPassword(t *testing.T) {
	u := localUser(t)
	u.AuthProvider = domain.AuthProviderGoogle
	u.PasswordHash = ""
	fx := newFixture(t, u)

	require.NoError(t, fx.svc.RequestDeletion(context.Background(), "u1", ""))
	require.Len(t, fx.mailer.sent, 1)
	assert.NotEmpty(t, fx.users.users["u1"].VerificationToken)
}

func TestConfirmDeletion_CascadesProfileBeforeUser(t *testing.T) {
	fx := newFixture(t, localUser(t))
	fx.profiles.profiles["u1"] = &domain.Profile{ProfileID: "p1", UserID: "u1"}

	require.NoError(t, fx.svc.RequestDeletion(context.Background(), "u1", "hunter22"))
	c := storedCode(t, fx, "u1")

	require.NoError(t, fx.svc.ConfirmDeletion(context.Background(), "u1", c, "too many emails"))

	require.Equal(t, []string{"profile:p1", "user:u1"}, fx.ops)
	assert.NotContains(t, fx.users.users, "u1")
	assert.Equal(t, []string{"u1"}, fx.sessions.disabled)

	// Feedback to admin carries the reason; user gets a confirmation; ops
	// phone gets an alert.
	var admin, user bool
	for _, m := range fx.mailer.sent[1:] {
		switch m.To {
		case "admin@example.com":
			admin = true
			assert.Contains(t, m.Text, "too many emails")
		case "alice@example.com":
			user = true
		}
	}
	assert.True(t, admin)
	assert.True(t, user)
	require.Len(t, fx.sms.sent, 1)
	assert.Contains(t, fx.sms.sent[0], "alice")
}

func TestConfirmDeletion_ProfileDeleteFailureStillDeletesUser(t *testing.T) {
	fx := newFixture(t, localUser(t))
	fx.profiles.profiles["u1"] = &domain.Profile{ProfileID: "p1", UserID: "u1"}
	fx.profiles.deleteErr = errors.New("dynamo throttled")

	require.NoError(t, fx.svc.RequestDeletion(context.Background(), "u1", "hunter22"))
	c := storedCode(t, fx, "u1")

	require.NoError(t, fx.svc.ConfirmDeletion(context.Background(), "u1", c, ""))
	assert.NotContains(t, fx.users.users, "u1")
}

func TestConfirmDeletion_FeedbackEmailFailureIsSwallowed(t *testing.T) {
	fx := newFixture(t, localUser(t))
	fx.mailer.failTo["admin@example.com"] = true

	require.NoError(t, fx.svc.RequestDeletion(context.Background(), "u1", "hunter22"))
	c := storedCode(t, fx, "u1")

	require.NoError(t, fx.svc.ConfirmDeletion(context.Background(), "u1", c, "meh"))
	assert.NotContains(t, fx.users.users, "u1")
}

func TestConfirmDeletion_WrongCodeLeavesAccount(t *testing.T) {
	fx := newFixture(t, localUser(t))
	require.NoError(t, fx.svc.RequestDeletion(context.Background(), "u1", "hunter22"))

	wrong := "000000"
	if storedCode(t, fx, "u1") == wrong {
		wrong = "000001"
	}
	err := fx.svc.ConfirmDeletion(context.Background(), "u1", wrong, "")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	assert.Contains(t, fx.users.users, "u1")
	assert.Empty(t, fx.ops)
}

// --- resend ---

func TestResendVerification_ReusesOriginalCode(t *testing.T) {
	fx := newFixture(t, localUser(t))
	require.NoError(t, fx.svc.RequestUsernameChange(context.Background(), "u1", "bob123", "hunter22"))
	first := storedCode(t, fx, "u1")

	require.NoError(t, fx.svc.ResendVerification(context.Background(), "u1", domain.ActionUsername))
	assert.Equal(t, first, storedCode(t, fx, "u1"))
	require.Len(t, fx.mailer.sent, 2)
	assert.Contains(t, fx.mailer.sent[1].Text, first)
}

func TestResendVerification_EmailActionTargetsPendingAddress(t *testing.T) {
	fx := newFixture(t, localUser(t))
	require.NoError(t, fx.svc.RequestEmailChange(context.Background(), "u1", "new@example.com", "hunter22"))

	require.NoError(t, fx.svc.ResendVerification(context.Background(), "u1", domain.ActionEmail))
	require.Len(t, fx.mailer.sent, 2)
	assert.Equal(t, "new@example.com", fx.mailer.sent[1].To)
}

func TestResendVerification_NothingInProgress(t *testing.T) {
	fx := newFixture(t, localUser(t))
	err := fx.svc.ResendVerification(context.Background(), "u1", domain.ActionUsername)
	assert.ErrorIs(t, err, domain.ErrNoVerification)
}
