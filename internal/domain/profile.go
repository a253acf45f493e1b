package domain

import "time"

// Profile is the public-facing page a user curates about themselves.
// Exactly one per user; removed as part of account deletion.
type Profile struct {
	ProfileID   string    `json:"id" dynamodbav:"profile_id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	DisplayName string    `json:"display_name" dynamodbav:"display_name"`
	Bio         string    `json:"bio" dynamodbav:"bio"`
	Website     string    `json:"website" dynamodbav:"website"`
	AvatarKey   string    `json:"-" dynamodbav:"avatar_key"`
	AvatarURL   string    `json:"avatar_url,omitempty" dynamodbav:"-"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio" validate:"omitempty,max=2000"`
	Website     *string `json:"website" validate:"omitempty,url"`
}
