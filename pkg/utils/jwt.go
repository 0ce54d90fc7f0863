package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT claims shape the HTTP boundary decodes into an entities.Actor
// (§9: "Duck-typed req.user becomes a single Actor value constructed at the HTTP
// boundary"). The core engine never imports this package or sees a token.
type Claims struct {
	UserID         string   `json:"user_id"`
	Email          string   `json:"email"`
	Role           string   `json:"role"`
	AssignedEvents []string `json:"assigned_events,omitempty"`
	jwt.RegisteredClaims
}

// JWTUtils issues and validates the bearer tokens consumed by the thin HTTP adapter's
// auth middleware. Authentication itself stays out of scope for the core (§1); this is
// ambient plumbing around it, kept in the teacher's idiom.
type JWTUtils struct {
	secretKey         string
	accessTokenExpiry time.Duration
	issuer            string
}

// NewJWTUtils constructs a JWTUtils.
func NewJWTUtils(secretKey string, accessTokenExpiry time.Duration, issuer string) *JWTUtils {
	return &JWTUtils{secretKey: secretKey, accessTokenExpiry: accessTokenExpiry, issuer: issuer}
}

// GenerateAccessToken issues a signed token carrying the Actor identity.
func (j *JWTUtils) GenerateAccessToken(userID, email, role string, assignedEvents []string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:         userID,
		Email:          email,
		Role:           role,
		AssignedEvents: assignedEvents,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ValidateAccessToken parses and verifies tokenString, returning its claims.
func (j *JWTUtils) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ExtractTokenFromHeader pulls the bearer token out of an Authorization header value.
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is empty")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return parts[1], nil
}
