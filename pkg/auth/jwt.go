package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors. The auth middleware turns each into its own 401 message.
var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrExpiredToken     = errors.New("bearer token expired")
	ErrInvalidSignature = errors.New("bearer token signature does not verify")
	ErrInvalidToken     = errors.New("bearer token rejected")
	ErrInvalidClaims    = errors.New("bearer token claims rejected")
)

// Claims identify the editor a request acts for. sub becomes the user id
// recorded on drafts, reservations and revisions.
type Claims struct {
	UserID string   `json:"sub"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTConfig configures a JWTValidator. PublicKey is a PEM key for RS256,
// SecretKey the shared secret for HS256.
type JWTConfig struct {
	SigningMethod string
	PublicKey     string
	SecretKey     string
	Issuer        string
	Audience      []string
	Leeway        time.Duration
}

// JWTValidator verifies bearer tokens issued for the memo API.
type JWTValidator struct {
	parser   *jwt.Parser
	key      interface{}
	audience []string
}

// NewJWTValidator builds a validator; the key is parsed once up front.
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	key, err := verificationKey(config)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{config.SigningMethod})}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}
	return &JWTValidator{parser: jwt.NewParser(opts...), key: key, audience: config.Audience}, nil
}

func verificationKey(config JWTConfig) (interface{}, error) {
	switch config.SigningMethod {
	case jwt.SigningMethodHS256.Alg():
		if config.SecretKey == "" {
			return nil, errors.New("HS256 needs a secret key")
		}
		return []byte(config.SecretKey), nil
	case jwt.SigningMethodRS256.Alg():
		if config.PublicKey == "" {
			return nil, errors.New("RS256 needs a public key")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(config.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("parse RS256 public key: %w", err)
		}
		return key, nil
	}
	return nil, fmt.Errorf("unsupported signing method %q", config.SigningMethod)
}

// ValidateToken verifies a raw token or an Authorization header value and
// returns its claims.
func (v *JWTValidator) ValidateToken(header string) (*Claims, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) { return v.key, nil }); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidClaims)
	}
	if len(v.audience) > 0 && !audienceAllowed(claims.Audience, v.audience) {
		return nil, fmt.Errorf("%w: audience %v", ErrInvalidClaims, claims.Audience)
	}
	return claims, nil
}

func audienceAllowed(got jwt.ClaimStrings, want []string) bool {
	for _, g := range got {
		for _, w := range want {
			if g == w {
				return true
			}
		}
	}
	return false
}

// JWTGenerator signs HS256 tokens for local runs and tests. Deployed
// environments take their tokens from the identity provider.
type JWTGenerator struct {
	secret   []byte
	issuer   string
	audience []string
	ttl      time.Duration
}

// NewJWTGenerator creates a JWTGenerator whose tokens live for ttl.
func NewJWTGenerator(secret, issuer string, audience []string, ttl time.Duration) *JWTGenerator {
	return &JWTGenerator{secret: []byte(secret), issuer: issuer, audience: audience, ttl: ttl}
}

// GenerateToken signs a token for the editor userID.
func (g *JWTGenerator) GenerateToken(userID, email string, roles []string) (string, error) {
	issued := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    g.issuer,
			Audience:  g.audience,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(g.ttl)),
		},
	}).SignedString(g.secret)
}
