package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sealdrop-api/internal/config"
)

const (
	audienceSession = "sealdrop:session"
	audienceGrant   = "sealdrop:delivery-access"

	// GrantTTL bounds how long a verified recipient may download without re-verifying.
	GrantTTL = 30 * time.Minute
)

// Claims is the payload of a signed-in user's session token.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// GrantClaims is the payload issued to a recipient after a successful access-code check.
type GrantClaims struct {
	DeliveryID string `json:"delivery_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewProviderFromKey(privKey, pubKey, cfg.JWTExpiry), nil
}

// NewProviderFromKey builds a provider from in-memory keys.
func NewProviderFromKey(priv *rsa.PrivateKey, pub *rsa.PublicKey, expiry time.Duration) *Provider {
	return &Provider{privateKey: priv, publicKey: pub, expiry: expiry}
}

// Sign issues a session token for userID bound to sessionID.
func (p *Provider) Sign(userID, sessionID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audienceSession},
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if err := p.parse(tokenStr, claims, audienceSession); err != nil {
		return nil, err
	}
	return claims, nil
}

// SignGrant issues a short-lived download grant for one delivery and recipient.
func (p *Provider) SignGrant(deliveryID, email string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(GrantTTL)
	claims := GrantClaims{
		DeliveryID: deliveryID,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deliveryID,
			Audience:  jwt.ClaimStrings{audienceGrant},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
	return signed, exp, err
}

func (p *Provider) VerifyGrant(tokenStr string) (*GrantClaims, error) {
	claims := &GrantClaims{}
	if err := p.parse(tokenStr, claims, audienceGrant); err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *Provider) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithAudience(audience), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token claims")
	}
	return nil
}
