package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"huishoudboek/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoIdentity   = errors.New("no identity in context")
)

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID   string
	Name     string
	TenantID string
	Role     core.Role
}

// Service signs and validates HS256 bearer tokens carrying the tenant
// membership of a user.
type Service struct {
	secret      []byte
	tokenExpiry time.Duration
}

func NewService(secret string, tokenExpiry time.Duration) *Service {
	if tokenExpiry == 0 {
		tokenExpiry = 24 * time.Hour
	}
	return &Service{secret: []byte(secret), tokenExpiry: tokenExpiry}
}

// GenerateToken issues a signed token for the given identity.
func (s *Service) GenerateToken(id Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       id.UserID,
		"name":      id.Name,
		"tenant_id": id.TenantID,
		"role":      string(id.Role),
		"iat":       now.Unix(),
		"exp":       now.Add(s.tokenExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies a token and returns the identity it
// carries.
func (s *Service) ValidateToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	tenantID, ok := claims["tenant_id"].(string)
	if !ok || tenantID == "" {
		return Identity{}, fmt.Errorf("%w: missing tenant_id claim", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)
	if !core.Role(role).Valid() {
		return Identity{}, fmt.Errorf("%w: invalid role claim %q", ErrInvalidToken, role)
	}
	name, _ := claims["name"].(string)

	return Identity{
		UserID:   sub,
		Name:     name,
		TenantID: tenantID,
		Role:     core.Role(role),
	}, nil
}

type contextKey struct{}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity placed by the auth middleware.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
