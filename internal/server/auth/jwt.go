// Package auth verifies session tokens issued by the external
// authentication provider. The server trusts the verified identity and never
// re-derives it.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/server/models"
)

// Claims carries the verified identity: the standard registered claims plus
// the user id and email the entitlement layer needs.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// GenerateToken signs a session token for the given identity (HS256).
func GenerateToken(p models.Principal, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: p.UserID,
		Email:  p.Email,
	})

	return token.SignedString(secretKey)
}

// ParsePrincipal validates the token and extracts the caller's identity.
func ParsePrincipal(tokenString string, secretKey []byte) (models.Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	})
	if err != nil {
		return models.Principal{}, common.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return models.Principal{}, common.ErrInvalidToken
	}

	return models.Principal{UserID: claims.UserID, Email: claims.Email}, nil
}
