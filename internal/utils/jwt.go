package utils

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/investours/backend/internal/config"
)

// Claims are the JWT claims carried by API tokens.
type Claims struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	IsAdmin     bool      `json:"is_admin"`
	jwt.StandardClaims
}

// GenerateToken creates a signed JWT for a principal.
func GenerateToken(cfg config.JWTConfig, principalID uuid.UUID, isAdmin bool) (string, error) {
	claims := Claims{
		PrincipalID: principalID,
		IsAdmin:     isAdmin,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Duration(cfg.Expiration) * time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ValidateToken parses and verifies a JWT, returning its claims.
func ValidateToken(cfg config.JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
