package domain

import "time"

// Delivery lifecycle event types published to the event topic.
const (
	EventDeliveryCreated       = "delivery.created"
	EventDeliveryStatusChanged = "delivery.status_changed"
	EventDeliveryPurged        = "delivery.purged"
)

type DeliveryEvent struct {
	Type           string    `json:"type"`
	DeliveryID     string    `json:"delivery_id"`
	OrganizationID string    `json:"organization_id"`
	Status         string    `json:"status,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
