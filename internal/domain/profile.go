package domain

import "time"

const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

// Profile is an account and its organization membership.
type Profile struct {
	UserID         string    `json:"id" dynamodbav:"user_id"`
	Email          string    `json:"email" dynamodbav:"email"`
	FullName       string    `json:"full_name" dynamodbav:"full_name"`
	PasswordHash   string    `json:"-" dynamodbav:"password_hash"`
	AuthProvider   string    `json:"auth_provider" dynamodbav:"auth_provider"`
	GoogleSub      string    `json:"-" dynamodbav:"google_sub,omitempty"`
	OrganizationID *string   `json:"organization_id" dynamodbav:"organization_id,omitempty"`
	Role           Role      `json:"role" dynamodbav:"role"`
	IsActive       bool      `json:"is_active" dynamodbav:"is_active"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// OrgID returns the organization id or "" when the profile has none.
func (p *Profile) OrgID() string {
	if p.OrganizationID == nil {
		return ""
	}
	return *p.OrganizationID
}

// InOrganization reports whether the profile is an active member of orgID.
func (p *Profile) InOrganization(orgID string) bool {
	return orgID != "" && p.OrgID() == orgID && p.IsActive
}

type Organization struct {
	OrganizationID string    `json:"id" dynamodbav:"organization_id"`
	Name           string    `json:"name" dynamodbav:"name"`
	OwnerID        string    `json:"owner_id" dynamodbav:"owner_id"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
}

type SignUpRequest struct {
	Email            string  `json:"email" validate:"required,email"`
	Password         string  `json:"password" validate:"required,min=8,max=72"`
	FullName         string  `json:"full_name" validate:"required,max=120,singleline"`
	OrganizationName *string `json:"organization_name" validate:"omitempty,min=2,max=120,singleline"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleSignInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}
