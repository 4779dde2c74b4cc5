package security

// Dev only: mints tokens for calling the read API locally.

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"dexanalytics/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type RS256Signer struct {
	priv *rsa.PrivateKey
	iss  string
	aud  string
	now  func() time.Time
}

func NewRS256Signer(cfg *config.JWTConfig) (*RS256Signer, error) {
	if cfg == nil || cfg.PrivateKeyPath == "" {
		return nil, errors.New("private key path is empty")
	}

	b, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	return NewRS256SignerFromPEM(b, cfg.Audience, cfg.Issuer)
}

func NewRS256SignerFromPEM(pemBytes []byte, audience, issuer string) (*RS256Signer, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &RS256Signer{priv: priv, iss: issuer, aud: audience, now: time.Now}, nil
}

// Mint signs a token for sub valid for ttl; jti is a fresh uuid
func (s *RS256Signer) Mint(sub string, ttl time.Duration) (string, error) {
	if sub == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.iss,
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	if s.aud != "" {
		claims.Audience = jwt.ClaimStrings{s.aud}
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.priv)
}
