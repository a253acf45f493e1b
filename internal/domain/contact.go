package domain

import "time"

// ContactMessage is a submission from the public contact form. Stored for
// the record; the admin is notified by email at submission time.
type ContactMessage struct {
	MessageID string    `json:"id" dynamodbav:"message_id"`
	Name      string    `json:"name" dynamodbav:"name"`
	Email     string    `json:"email" dynamodbav:"email"`
	Subject   string    `json:"subject" dynamodbav:"subject"`
	Body      string    `json:"body" dynamodbav:"body"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}
