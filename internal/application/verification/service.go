package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/code"
)

// tokenStore persists the single verification token of a user. Implemented by
// the user repository: the record serializes into one attribute on the user
// item, so it has no identity of its own and cannot outlive the user.
type tokenStore interface {
	VerificationToken(ctx context.Context, userID string) (string, error)
	SaveVerificationToken(ctx context.Context, userID, raw string) error
	ClearVerificationToken(ctx context.Context, userID string) error
}

// Service manages the verification-token lifecycle for account workflows.
//
// Validation failures come back as the domain token sentinels (ErrNoToken,
// ErrTokenFormat, ErrCodeMismatch, ErrWrongAction, ErrTokenExpired,
// ErrNoVerification) so callers can surface the exact kind to the user.
// Anything else is a store failure and is fatal to the operation.
type Service interface {
	// Issue generates a fresh code and persists a token for the action,
	// overwriting any token already in flight — including one for a
	// different action. newEmail is carried only for domain.ActionEmail.
	Issue(ctx context.Context, userID string, action domain.VerificationAction, newEmail string) (string, error)
	// Validate checks the submitted code against the stored token.
	Validate(ctx context.Context, userID, submitted string, action domain.VerificationAction) (*domain.TokenRecord, error)
	// Resend refreshes both timestamps of the in-flight token, keeping the
	// original code so a code the user already received stays usable.
	Resend(ctx context.Context, userID string, action domain.VerificationAction) (*domain.TokenRecord, error)
	// Clear removes the token once the workflow completes.
	Clear(ctx context.Context, userID string) error
}

type service struct {
	store    tokenStore
	generate func() string
}

func NewService(store tokenStore) Service {
	return &service{store: store, generate: code.New}
}

func (s *service) Issue(ctx context.Context, userID string, action domain.VerificationAction, newEmail string) (string, error) {
	if !action.Valid() {
		return "", fmt.Errorf("unknown verification action %q: %w", action, domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	rec := &domain.TokenRecord{
		Code:        s.generate(),
		Action:      action,
		ExpiresAt:   now.Add(domain.TokenTTL),
		RequestedAt: now,
		NewEmail:    newEmail,
	}
	raw, err := rec.Marshal()
	if err != nil {
		return "", err
	}
	if err := s.store.SaveVerificationToken(ctx, userID, raw); err != nil {
		return "", err
	}
	return rec.Code, nil
}

func (s *service) Validate(ctx context.Context, userID, submitted string, action domain.VerificationAction) (*domain.TokenRecord, error) {
	raw, err := s.store.VerificationToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, domain.ErrNoToken
	}
	rec, err := domain.ParseTokenRecord(raw)
	if err != nil {
		return nil, err
	}
	if rec.Code != submitted {
		return nil, domain.ErrCodeMismatch
	}
	if rec.Action != action {
		return nil, domain.ErrWrongAction
	}
	if rec.Expired(time.Now().UTC()) {
		return nil, domain.ErrTokenExpired
	}
	return rec, nil
}

func (s *service) Resend(ctx context.Context, userID string, action domain.VerificationAction) (*domain.TokenRecord, error) {
	raw, err := s.store.VerificationToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, domain.ErrNoVerification
	}
	rec, err := domain.ParseTokenRecord(raw)
	if err != nil {
		return nil, err
	}
	if rec.Action != action {
		return nil, domain.ErrNoVerification
	}
	now := time.Now().UTC()
	rec.RequestedAt = now
	rec.ExpiresAt = now.Add(domain.TokenTTL)
	updated, err := rec.Marshal()
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveVerificationToken(ctx, userID, updated); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *service) Clear(ctx context.Context, userID string) error {
	return s.store.ClearVerificationToken(ctx, userID)
}
