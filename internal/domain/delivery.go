package domain

import (
	"strings"
	"time"
)

// Delivery statuses. The only legal transitions are active -> expired and active -> revoked.
const (
	DeliveryActive  = "active"
	DeliveryExpired = "expired"
	DeliveryRevoked = "revoked"
)

type Delivery struct {
	DeliveryID       string    `json:"id" dynamodbav:"delivery_id"`
	Title            string    `json:"title" dynamodbav:"title"`
	Message          *string   `json:"message,omitempty" dynamodbav:"message"`
	RecipientEmail   string    `json:"recipient_email" dynamodbav:"recipient_email"`
	ExpiresAt        time.Time `json:"expires_at" dynamodbav:"expires_at"`
	Status           string    `json:"status" dynamodbav:"status"`
	CurrentViews     int       `json:"current_views" dynamodbav:"current_views"`
	MaxViews         int       `json:"max_views" dynamodbav:"max_views"` // 0 = unlimited
	CurrentDownloads int       `json:"current_downloads" dynamodbav:"current_downloads"`
	MaxDownloads     int       `json:"max_downloads" dynamodbav:"max_downloads"` // 0 = unlimited
	TotalSize        int64     `json:"total_size" dynamodbav:"total_size"`
	SenderID         string    `json:"sender_id" dynamodbav:"sender_id"`
	OrganizationID   string    `json:"organization_id" dynamodbav:"organization_id"`
	CreatedAt        time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" dynamodbav:"updated_at"`

	Files []DeliveryFile `json:"files,omitempty" dynamodbav:"-"`
}

// Accessible reports whether a recipient may still open the delivery at now.
func (d *Delivery) Accessible(now time.Time) bool {
	return d.Status == DeliveryActive && now.Before(d.ExpiresAt)
}

// MatchesRecipient compares email against the recorded recipient, ignoring case and surrounding space.
func (d *Delivery) MatchesRecipient(email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), strings.TrimSpace(d.RecipientEmail))
}

// DeliveryFile is the metadata row of one stored object. It belongs to exactly one delivery.
type DeliveryFile struct {
	FileID      string    `json:"id" dynamodbav:"file_id"`
	DeliveryID  string    `json:"delivery_id" dynamodbav:"delivery_id"`
	Filename    string    `json:"filename" dynamodbav:"filename"`
	MimeType    string    `json:"mime_type" dynamodbav:"mime_type"`
	Size        int64     `json:"size" dynamodbav:"size"`
	StoragePath string    `json:"-" dynamodbav:"storage_path"`
	ContentHash *string   `json:"content_hash,omitempty" dynamodbav:"content_hash"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
}

type CreateDeliveryRequest struct {
	Title          string  `json:"title" validate:"required,max=200,singleline"`
	RecipientEmail string  `json:"recipient_email" validate:"required,email"`
	Message        *string `json:"message" validate:"omitempty,max=5000"`
	ExpiresAt      string  `json:"expires_at" validate:"required"` // RFC 3339
	MaxViews       int     `json:"max_views" validate:"gte=0"`
	MaxDownloads   int     `json:"max_downloads" validate:"gte=0"`
}

type UpdateDeliveryStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active expired revoked"`
}

// ValidDeliveryStatus reports whether s is one of the known statuses.
func ValidDeliveryStatus(s string) bool {
	switch s {
	case DeliveryActive, DeliveryExpired, DeliveryRevoked:
		return true
	}
	return false
}
