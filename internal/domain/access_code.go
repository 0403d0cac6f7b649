package domain

import "time"

const (
	AccessCodeTTL         = 15 * time.Minute
	AccessCodeMaxAttempts = 3
	AccessCodeMin         = 100000
	AccessCodeMax         = 999999
)

// AccessCode is a one-time credential bound to a delivery and a recipient email.
// PK: delivery_id, SK: email. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type AccessCode struct {
	DeliveryID   string    `json:"delivery_id" dynamodbav:"delivery_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	Code         string    `json:"-" dynamodbav:"code"`
	ExpiresAt    int64     `json:"expires_at" dynamodbav:"expires_at"`
	AttemptsLeft int       `json:"attempts_left" dynamodbav:"attempts_left"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
}

type RequestAccessRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyAccessRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}
