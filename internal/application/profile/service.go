package profile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/id"
)

// avatarURLTTL bounds how long a returned avatar link stays fetchable.
const avatarURLTTL = 24 * time.Hour

type Service interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Update(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.Profile, error)
	UploadAvatar(ctx context.Context, userID, filename string, r io.Reader) (*domain.Profile, error)
}

type profileStore interface {
	Put(ctx context.Context, p *domain.Profile) error
	GetByUser(ctx context.Context, userID string) (*domain.Profile, error)
	Update(ctx context.Context, profileID string, updates map[string]interface{}) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type contentTyper func(filename string) string

type service struct {
	repo        profileStore
	media       objectStore
	contentType contentTyper
}

func NewService(repo profileStore, media objectStore, contentType func(string) string) Service {
	return &service{repo: repo, media: media, contentType: contentType}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.resolveAvatarURL(ctx, p)
	return p, nil
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		p.DisplayName = *req.DisplayName
		updates["display_name"] = *req.DisplayName
	}
	if req.Bio != nil {
		p.Bio = *req.Bio
		updates["bio"] = *req.Bio
	}
	if req.Website != nil {
		p.Website = *req.Website
		updates["website"] = *req.Website
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
		if err := s.repo.Update(ctx, p.ProfileID, updates); err != nil {
			return nil, err
		}
	}
	s.resolveAvatarURL(ctx, p)
	return p, nil
}

func (s *service) UploadAvatar(ctx context.Context, userID, filename string, r io.Reader) (*domain.Profile, error) {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return nil, fmt.Errorf("unsupported avatar type %q: %w", ext, domain.ErrBadRequest)
	}
	p, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("avatars/%s/%s%s", userID, id.New(), ext)
	if _, err := s.media.Upload(ctx, key, r, s.contentType(filename)); err != nil {
		return nil, err
	}
	old := p.AvatarKey
	p.AvatarKey = key
	if err := s.repo.Update(ctx, p.ProfileID, map[string]interface{}{
		"avatar_key": key,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}
	if old != "" {
		if err := s.media.Delete(ctx, old); err != nil {
			slog.Warn("failed to delete replaced avatar", "user_id", userID, "key", old, "err", err)
		}
	}
	s.resolveAvatarURL(ctx, p)
	return p, nil
}

func (s *service) getOrCreate(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.repo.GetByUser(ctx, userID)
	if err == nil {
		return p, nil
	}
	now := time.Now().UTC()
	p = &domain.Profile{
		ProfileID: id.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) resolveAvatarURL(ctx context.Context, p *domain.Profile) {
	if p.AvatarKey == "" {
		return
	}
	url, err := s.media.PresignedURL(ctx, p.AvatarKey, avatarURLTTL)
	if err != nil {
		slog.Warn("failed to presign avatar url", "profile_id", p.ProfileID, "err", err)
		return
	}
	p.AvatarURL = url
}
