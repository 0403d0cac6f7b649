package http

import (
	"github.com/sealdrop-api/internal/infrastructure/dynamo"
	"github.com/sealdrop-api/internal/infrastructure/google"
	jwtinfra "github.com/sealdrop-api/internal/infrastructure/jwt"
	"github.com/sealdrop-api/internal/infrastructure/lemonsqueezy"
	s3infra "github.com/sealdrop-api/internal/infrastructure/s3"
	"github.com/sealdrop-api/internal/infrastructure/smtp"
	"github.com/sealdrop-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	ProfileRepo      *dynamo.ProfileRepo
	OrganizationRepo *dynamo.OrganizationRepo
	SessionRepo      *dynamo.SessionRepo
	DeliveryRepo     *dynamo.DeliveryRepo
	AccessCodeRepo   *dynamo.AccessCodeRepo
	InvitationRepo   *dynamo.InvitationRepo
	SubscriptionRepo *dynamo.SubscriptionRepo
	EarlyAdopterRepo *dynamo.EarlyAdopterRepo
	WaitlistRepo     *dynamo.WaitlistRepo
	S3Store          *s3infra.Store
	Messages         *smtp.Messages
	Events           sns.Publisher
	JWTProvider      *jwtinfra.Provider
	Google           *google.Verifier
	Payments         *lemonsqueezy.Client
}
