package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/sealdrop-api/internal/domain"
)

// NewOpaque generates a cryptographically random 64-character hex token.
func NewOpaque() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash returns the hex SHA-256 of tok. Only the hash of a bearer token is stored.
func Hash(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// NewAccessCode returns a uniformly random integer in [100000, 999999] as a 6-digit string.
func NewAccessCode() (string, error) {
	span := big.NewInt(domain.AccessCodeMax - domain.AccessCodeMin + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+domain.AccessCodeMin), nil
}
