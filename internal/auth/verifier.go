package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the result of a successful token verification.
type Identity struct {
	Subject string
	Name    string
	Email   string
}

// ErrInvalidToken is returned for tokens that fail verification for any
// reason; callers surface it as an auth_error without detail.
var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer token into an identity. The production
// implementation verifies JWTs; tests inject fakes.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// JWTVerifier verifies HMAC-signed JWTs issued by the external identity
// provider. Issuer is only enforced when configured.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier for the given shared secret.
func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is empty")
	}
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses and validates the token and extracts subject and display
// name. Tokens without a subject are rejected.
func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidToken
	}

	id := &Identity{Subject: sub}
	if name, ok := claims["name"].(string); ok {
		id.Name = name
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	return id, nil
}

// DisplayName picks the best available human-readable name for the identity.
func (i *Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if i.Email != "" {
		return i.Email
	}
	if len(i.Subject) > 8 {
		return "player-" + i.Subject[:8]
	}
	return "player-" + i.Subject
}
