package jwtutil

import (
	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte("defaultsecretkey")

// SetSigningKey overrides the signing key from configuration.
func SetSigningKey(key string) {
	if key != "" {
		secret = []byte(key)
	}
}

// UserClaims represents the JWT claims for operator authentication. The
// restaurant id scopes every POS operation to one tenant.
type UserClaims struct {
	Email        string `json:"email"`
	UserID       string `json:"user_id"`
	RestaurantID string `json:"restaurant_id,omitempty"`
	Role         string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the given claims.
func GenerateToken(claims *UserClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
