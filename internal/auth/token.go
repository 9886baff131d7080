package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims describes JWT payload. The subject is the actor id.
type Claims struct {
	Kind   domain.ActorKind        `json:"kind"`
	Name   string                  `json:"name,omitempty"`
	Agency domain.GovernmentAgency `json:"agency,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the actor.
func (tm *TokenManager) GenerateToken(actor domain.Actor) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Kind: actor.Kind(),
		Name: actor.DisplayName(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ActorID(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if e, ok := actor.(domain.Employee); ok {
		claims.Agency = e.Agency
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Actor converts claims into the caller of service operations.
func (c *Claims) Actor() (domain.Actor, error) {
	if c.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	switch c.Kind {
	case domain.ActorKindCitizen:
		return domain.Citizen{ID: c.Subject, Name: c.Name}, nil
	case domain.ActorKindEmployee:
		if !c.Agency.Valid() {
			return nil, fmt.Errorf("employee token has invalid agency %q", c.Agency)
		}
		return domain.Employee{ID: c.Subject, Name: c.Name, Agency: c.Agency}, nil
	case domain.ActorKindAdmin:
		return domain.Admin{ID: c.Subject, Name: c.Name}, nil
	default:
		return nil, fmt.Errorf("unknown actor kind %q", c.Kind)
	}
}
