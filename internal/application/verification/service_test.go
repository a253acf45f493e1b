package verification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/storefront-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenStore keeps tokens in memory, mirroring the single-attribute
// storage on the user record.
type fakeTokenStore struct {
	tokens  map[string]string
	saveErr error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]string{}}
}

func (f *fakeTokenStore) VerificationToken(_ context.Context, userID string) (string, error) {
	return f.tokens[userID], nil
}

func (f *fakeTokenStore) SaveVerificationToken(_ context.Context, userID, raw string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.tokens[userID] = raw
	return nil
}

func (f *fakeTokenStore) ClearVerificationToken(_ context.Context, userID string) error {
	delete(f.tokens, userID)
	return nil
}

func TestIssueThenValidate_HappyPath(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store)

	c, err := svc.Issue(context.Background(), "u1", domain.ActionUsername, "")
	require.NoError(t, err)
	require.Len(t, c, 6)

	rec, err := svc.Validate(context.Background(), "u1", c, domain.ActionUsername)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionUsername, rec.Action)
	assert.Equal(t, c, rec.Code)
}

func TestIssue_UnknownAction(t *testing.T) {
	svc := NewService(newFakeTokenStore())
	_, err := svc.Issue(context.Background(), "u1", "password", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestIssue_EmailActionCarriesPayload(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store)

	c, err := svc.Issue(context.Background(), "u1", domain.ActionEmail, "new@example.com")
	require.NoError(t, err)

	rec, err := svc.Validate(context.Background(), "u1", c, domain.ActionEmail)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", rec.NewEmail)
}

func TestValidate_NoToken(t *testing.T) {
	svc := NewService(newFakeTokenStore())
	_, err := svc.Validate(context.Background(), "u1", "123456", domain.ActionUsername)
	assert.ErrorIs(t, err, domain.ErrNoToken)
}

func TestValidate_WrongCode(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store)
	c, err := svc.Issue(context.Background(), "u1", domain.ActionUsername, "")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == c {
		wrong = "000001"
	}
	_, err = svc.Validate(context.Background(), "u1", wrong, domain.ActionUsername)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
}

func TestValidate_WrongAction(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store)
	c, err := svc.Issue(context.Background(), "u1", domain.ActionUsername, "")
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), "u1", c, domain.ActionAccountDeletion)
	assert.ErrorIs(t, err, domain.ErrWrongAction)
}

func TestValidate_Expired(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store)

	rec := domain.TokenRecord{
		Code:        "654321",
		Action:      domain.ActionEmail,
		ExpiresAt:   time.Now().UTC().Add(-time.Minute),
		RequestedAt: time.Now().UTC().Add(-16 * time.Minute),
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	store.tokens["u1"] = string(raw)

	_, err = svc.Validate(context.Background(), "u1", "654321", domain.ActionEmail)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestValidate_MalformedStoredValue(t *testing.T) {
	store := newFakeTokenStore()
	store.tokens["u1"] = "{not json"
	svc := NewService(store)

	_, err := svc.Validate(context.Background(), "u1", "123456", domain.ActionUsername)
	assert.ErrorIs(t, err, domain.ErrTokenFormat)
}

func TestIssue_OverwritesInFlightToken(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store)

	first, err := svc.Issue(context.Background(), "u1", domain.ActionUsername, "")
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), "u1", domain.ActionAccountDeletion, "")
	require.NoError(t, err)

	// The username token is gone; its code no longer validates.
	_, err = svc.Validate(context.Background(), "u1", first, domain.ActionUsername)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeMismatch) || errors.Is(err, domain.ErrWrongAction))
}

func TestResend_KeepsCodeAndExtendsExpiry(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store)

	// An almost-expired token.
	rec := domain.TokenRecord{
		Code:        "222333",
		Action:      domain.ActionEmail,
		NewEmail:    "new@example.com",
		ExpiresAt:   time.Now().UTC().Add(time.Second),
		RequestedAt: time.Now().UTC().Add(-14 * time.Minute),
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	store.tokens["u1"] = string(raw)

	resent, err := svc.Resend(context.Background(), "u1", domain.ActionEmail)
	require.NoError(t, err)
	assert.Equal(t, "222333", resent.Code)
	assert.Equal(t, "new@example.com", resent.NewEmail)
	assert.Greater(t, resent.ExpiresAt.Unix(), time.Now().UTC().Add(14*time.Minute).Unix())

	// The original code still validates after the resend.
	got, err := svc.Validate(context.Background(), "u1", "222333", domain.ActionEmail)
	require.NoError(t, err)
	assert.Equal(t, "222333", got.Code)
}

func TestResend_NoTokenInFlight(t *testing.T) {
	svc := NewService(newFakeTokenStore())
	_, err := svc.Resend(context.Background(), "u1", domain.ActionUsername)
	assert.ErrorIs(t, err, domain.ErrNoVerification)
}

func TestResend_ActionMismatch(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store)
	_, err := svc.Issue(context.Background(), "u1", domain.ActionUsername, "")
	require.NoError(t, err)

	_, err = svc.Resend(context.Background(), "u1", domain.ActionEmail)
	assert.ErrorIs(t, err, domain.ErrNoVerification)
}

func TestIssue_StoreFailurePropagates(t *testing.T) {
	store := newFakeTokenStore()
	store.saveErr = errors.New("dynamo unavailable")
	svc := NewService(store)

	_, err := svc.Issue(context.Background(), "u1", domain.ActionUsername, "")
	assert.ErrorContains(t, err, "dynamo unavailable")
}

func TestClear_RemovesToken(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store)
	c, err := svc.Issue(context.Background(), "u1", domain.ActionUsername, "")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(context.Background(), "u1"))
	_, err = svc.Validate(context.Background(), "u1", c, domain.ActionUsername)
	assert.ErrorIs(t, err, domain.ErrNoToken)
}
