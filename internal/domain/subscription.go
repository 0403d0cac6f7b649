package domain

import (
	"fmt"
	"time"
)

const (
	PlanFree       = "free"
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"

	SubscriptionActive = "active"
)

// Features are the plan-level feature flags.
type Features struct {
	CustomBranding  bool `json:"custom_branding" dynamodbav:"custom_branding"`
	AuditLog        bool `json:"audit_log" dynamodbav:"audit_log"`
	PrioritySupport bool `json:"priority_support" dynamodbav:"priority_support"`
	APIAccess       bool `json:"api_access" dynamodbav:"api_access"`
}

// PlanLimits caps an organization's usage. Zero means unlimited.
type PlanLimits struct {
	Deliveries int   `json:"deliveries"`
	Storage    int64 `json:"storage"`
	Users      int   `json:"users"`
	Features   Features
}

const gib = int64(1) << 30

// Plans holds the fixed limits per plan name.
var Plans = map[string]PlanLimits{
	PlanFree:       {Deliveries: 50, Storage: 5 * gib, Users: 3},
	PlanStarter:    {Deliveries: 200, Storage: 25 * gib, Users: 5, Features: Features{AuditLog: true}},
	PlanPro:        {Deliveries: 1000, Storage: 100 * gib, Users: 20, Features: Features{CustomBranding: true, AuditLog: true, APIAccess: true}},
	PlanEnterprise: {Features: Features{CustomBranding: true, AuditLog: true, PrioritySupport: true, APIAccess: true}},
}

// IsPaidPlan reports whether plan can be bought through checkout.
func IsPaidPlan(plan string) bool {
	return plan == PlanStarter || plan == PlanPro || plan == PlanEnterprise
}

// Subscription is keyed by organization id.
type Subscription struct {
	OrganizationID      string     `json:"organization_id" dynamodbav:"organization_id"`
	Plan                string     `json:"plan" dynamodbav:"plan"`
	Status              string     `json:"status" dynamodbav:"status"`
	DeliveriesUsed      int        `json:"deliveries_used" dynamodbav:"deliveries_used"`
	StorageUsed         int64      `json:"storage_used" dynamodbav:"storage_used"`
	UsersCount          int        `json:"users_count" dynamodbav:"users_count"`
	DeliveriesLimit     int        `json:"deliveries_limit" dynamodbav:"deliveries_limit"`
	StorageLimit        int64      `json:"storage_limit" dynamodbav:"storage_limit"`
	UsersLimit          int        `json:"users_limit" dynamodbav:"users_limit"`
	Features            Features   `json:"features" dynamodbav:"features"`
	LemonSubscriptionID *string    `json:"-" dynamodbav:"lemon_subscription_id"`
	CurrentPeriodEnd    *time.Time `json:"current_period_end,omitempty" dynamodbav:"current_period_end"`
	CreatedAt           time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// NewSubscription builds an active subscription for orgID with the limits of plan.
func NewSubscription(orgID, plan string, now time.Time) *Subscription {
	l := Plans[plan]
	return &Subscription{
		OrganizationID:  orgID,
		Plan:            plan,
		Status:          SubscriptionActive,
		DeliveriesLimit: l.Deliveries,
		StorageLimit:    l.Storage,
		UsersLimit:      l.Users,
		Features:        l.Features,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=starter pro enterprise"`
}

// Claim outcomes that are not failures of the system itself.
var (
	ErrSlotsExhausted = fmt.Errorf("no early adopter slots remaining: %w", ErrConflict)
	ErrAlreadyClaimed = fmt.Errorf("organization already claimed an early adopter slot: %w", ErrConflict)
)

// EarlyAdopterStatus is the public view of the slot counter.
type EarlyAdopterStatus struct {
	TotalSlots     int  `json:"total_slots"`
	ClaimedSlots   int  `json:"claimed_slots"`
	RemainingSlots int  `json:"remaining_slots"`
	AlreadyClaimed bool `json:"already_claimed"`
}

// ClaimResult mirrors the claim outcome: success plus a human message.
type ClaimResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type WaitlistEntry struct {
	Email     string    `json:"email" dynamodbav:"email"`
	Source    *string   `json:"source,omitempty" dynamodbav:"source"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

type JoinWaitlistRequest struct {
	Email  string  `json:"email" validate:"required,email"`
	Source *string `json:"source" validate:"omitempty,max=64"`
}
