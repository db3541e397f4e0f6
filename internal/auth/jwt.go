// Package auth issues and verifies the HS256 access tokens that scope every
// record store call to a single owner.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the owner identity alongside the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"ownerId"`
}

func GenerateToken(ownerID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("generate token: empty owner: %w", common.ErrorValidation)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		OwnerID: ownerID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetOwnerIDFromToken verifies the signature and expiry and returns the owner.
func GetOwnerIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.OwnerID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.OwnerID, nil
}

// PeekOwnerID reads the owner from a token without verifying it. Clients use
// it to learn who they are signed in as; the server always verifies.
func PeekOwnerID(tokenString string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.OwnerID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.OwnerID, nil
}
