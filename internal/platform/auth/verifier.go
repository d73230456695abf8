package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the resolved result of a credential: who the caller is and
// which portal role they hold.
type Identity struct {
	UserID string
	Role   string
	Name   string
}

// Claims is the JWT payload issued by the portal's account service.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// Verifier checks token signature and expiry and resolves the caller's
// identity. Both the HTTP middleware and the realtime handshake use it, so
// a credential means the same thing on either path.
type Verifier struct {
	signingKey []byte
	issuer     string
	audience   string
}

type VerifierConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{
		signingKey: cfg.SigningKey,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}
}

// Resolve validates a bearer token and returns the identity it carries.
func (v *Verifier) Resolve(tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID: claims.Subject,
		Role:   claims.Role,
		Name:   claims.Name,
	}, nil
}

// Sign issues a token for the given identity. Used by tests and dev
// tooling; production tokens come from the account service.
func (v *Verifier) Sign(id Identity, expiry jwt.NumericDate) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			ExpiresAt: &expiry,
		},
		Role: id.Role,
		Name: id.Name,
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
