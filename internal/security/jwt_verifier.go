package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dexanalytics/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoBearerToken = errors.New("authorization header must be: Bearer <token>")

// RS256Verifier checks tokens of the API clients. Empty audience or issuer is not checked.
type RS256Verifier struct {
	pub    *rsa.PublicKey
	aud    string
	iss    string
	leeway time.Duration
}

func NewRS256Verifier(cfg *config.JWTConfig) (*RS256Verifier, error) {
	if cfg == nil {
		return nil, errors.New("jwt config is required")
	}
	if cfg.Alg != "" && !strings.EqualFold(cfg.Alg, jwt.SigningMethodRS256.Alg()) {
		return nil, fmt.Errorf("unsupported jwt alg %q", cfg.Alg)
	}

	b, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	return NewRS256VerifierFromPEM(b, cfg.Audience, cfg.Issuer, cfg.Leeway)
}

func NewRS256VerifierFromPEM(pemBytes []byte, audience, issuer string, leeway time.Duration) (*RS256Verifier, error) {
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return &RS256Verifier{pub: pub, aud: audience, iss: issuer, leeway: leeway}, nil
}

// VerifyBearer takes the raw Authorization header
func (v *RS256Verifier) VerifyBearer(authHeader string) (*jwt.RegisteredClaims, error) {
	raw, err := bearerToken(authHeader)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if v.aud != "" {
		opts = append(opts, jwt.WithAudience(v.aud))
	}
	if v.iss != "" {
		opts = append(opts, jwt.WithIssuer(v.iss))
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.pub, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return claims, nil
}

func bearerToken(h string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNoBearerToken
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", ErrNoBearerToken
	}
	return token, nil
}
