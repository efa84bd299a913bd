package dto

import (
	"github.com/google/uuid"
)

type CreateProfileRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	FullName string    `json:"full_name" binding:"required,max=255"`
	Headline string    `json:"headline" binding:"max=500"`
}

type ProfileResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	FullName  string    `json:"full_name"`
	Headline  string    `json:"headline,omitempty"`
	PhotoPath string    `json:"photo_path,omitempty"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}
