package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Veraticus/chargedesk/internal/common"
)

// ErrInvalidToken is returned for a session token that is malformed, expired
// or signed with another key.
var ErrInvalidToken = errors.New("invalid or expired session token")

// DefaultTokenTTL is the session length: one night shift plus slack.
const DefaultTokenTTL = 12 * time.Hour

const tokenIssuer = "chargedesk"

// Claims is the session token payload.
type Claims struct {
	Role      Role   `json:"role"`
	AgentName string `json:"agent_name,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens for logged-in users.
type Issuer struct {
	now func() time.Time
	key []byte
	ttl time.Duration
}

// NewIssuer creates an issuer. A ttl of zero means DefaultTokenTTL.
func NewIssuer(key string, ttl time.Duration) (*Issuer, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: session signing key", common.ErrMissingConfig)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{key: []byte(key), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for p and its expiry.
func (i *Issuer) Issue(p Profile) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Role:      p.Role,
		AgentName: p.AgentName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks a token and returns the profile it was issued for.
func (i *Issuer) Verify(token string) (Profile, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	role, err := ParseRole(string(claims.Role))
	if err != nil || claims.Subject == "" {
		return Profile{}, ErrInvalidToken
	}
	return Profile{ID: claims.Subject, Role: role, AgentName: claims.AgentName}, nil
}
