package contact

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/id"
)

type Service interface {
	Submit(ctx context.Context, req domain.ContactRequest) error
}

type messageStore interface {
	Put(ctx context.Context, m *domain.ContactMessage) error
}

type mailer interface {
	Send(to, subject, textBody, htmlBody string) error
}

type service struct {
	repo       messageStore
	mailer     mailer
	adminEmail string
}

func NewService(repo messageStore, mailer mailer, adminEmail string) Service {
	return &service{repo: repo, mailer: mailer, adminEmail: adminEmail}
}

// Submit stores the message and notifies the admin. The notification is what
// the contact form is for, so its failure fails the submission.
func (s *service) Submit(ctx context.Context, req domain.ContactRequest) error {
	if s.adminEmail == "" {
		return fmt.Errorf("contact address not configured: %w", domain.ErrBadRequest)
	}
	m := &domain.ContactMessage{
		MessageID: id.New(),
		Name:      req.Name,
		Email:     req.Email,
		Subject:   req.Subject,
		Body:      req.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Put(ctx, m); err != nil {
		return err
	}
	text := fmt.Sprintf("From: %s <%s>\n\n%s", req.Name, req.Email, req.Message)
	if err := s.mailer.Send(s.adminEmail, "Contact form: "+req.Subject, text, ""); err != nil {
		return fmt.Errorf("send contact notification: %w", err)
	}
	return nil
}
