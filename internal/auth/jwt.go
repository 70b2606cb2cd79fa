package auth

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/delivery-dispatch/internal/realtime"
)

// Claims is the JWT payload carried by realtime credential tokens.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"` // customer, driver, merchant or admin
	gojwt.RegisteredClaims
}

// JWTVerifier checks HS256 bearer tokens. It satisfies
// realtime.TokenVerifier.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a raw token, returning the client identity.
func (v *JWTVerifier) Verify(raw string) (realtime.Identity, error) {
	token, err := gojwt.ParseWithClaims(raw, &Claims{}, func(t *gojwt.Token) (any, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return realtime.Identity{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return realtime.Identity{}, errors.New("invalid token")
	}
	return realtime.Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// Sign issues a token for the given user; used by tooling and tests.
func (v *JWTVerifier) Sign(userID, role string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  gojwt.NewNumericDate(time.Now()),
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(v.secret)
}
