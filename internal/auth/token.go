package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier turns a raw bearer token into an actor.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Actor, error)
}

// Claims is the token body issued to box office users.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// HMACVerifier checks HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	Secret []byte
	Issuer string
}

func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{Secret: []byte(secret), Issuer: issuer}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (*Actor, error) {
	if rawToken == "" {
		return nil, errors.New("empty token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims.Subject == "" {
		return nil, errors.New("subject claim not found in token")
	}
	return &Actor{ID: claims.Subject, Roles: ParseRoles(claims.Roles)}, nil
}

// Issue signs a token for subject. Used by local tooling and tests.
func (v *HMACVerifier) Issue(subject string, roles []Role, ttl time.Duration) (string, error) {
	raw := make([]string, len(roles))
	for i, r := range roles {
		raw[i] = string(r)
	}
	now := time.Now()
	claims := Claims{
		Roles: raw,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}
