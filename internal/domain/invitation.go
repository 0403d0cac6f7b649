package domain

import "time"

const InvitationTTL = 7 * 24 * time.Hour

type OrganizationInvitation struct {
	InvitationID   string    `json:"id" dynamodbav:"invitation_id"`
	OrganizationID string    `json:"organization_id" dynamodbav:"organization_id"`
	Email          string    `json:"email" dynamodbav:"email"`
	Role           Role      `json:"role" dynamodbav:"role"`
	InvitedBy      string    `json:"invited_by" dynamodbav:"invited_by"`
	TokenHash      string    `json:"-" dynamodbav:"token_hash"`
	Accepted       bool      `json:"accepted" dynamodbav:"accepted"`
	ExpiresAt      time.Time `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
}

type CreateInvitationRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  Role   `json:"role" validate:"required,oneof=member admin"`
}

type ChangeRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=member admin"`
}
