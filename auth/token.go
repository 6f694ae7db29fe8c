package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/xtzs123/uniapp-backend/errors"
)

// PrincipalKind discriminates user tokens from administrative ones.
// Only USER tokens may open a realtime connection.
type PrincipalKind string

const (
	KindUser  PrincipalKind = "USER"
	KindAdmin PrincipalKind = "ADMIN"
)

// jwtKey is the secret used to sign tokens.
// In a production environment, this should be loaded from an environment variable or a secret manager.
var jwtKey = []byte("my_strong_and_long_secret_key_2026")

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	ID       int64         `json:"id"`
	Username string        `json:"username"`
	Kind     PrincipalKind `json:"type"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a principal.
func GenerateToken(id int64, username string, kind PrincipalKind,
	tokenDuration time.Duration) (string, error) {
	expirationTime := time.Now().Add(tokenDuration)

	claims := &CustomClaims{
		ID:       id,
		Username: username,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "uniapp-backend",
		},
	}

	// Create the token using the HS256 algorithm (HMAC with SHA256).
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	// Sign the token with the server's secret key.
	return token.SignedString(jwtKey)
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// ValidateUserToken accepts only tokens carrying the USER kind.
// Administrative tokens are valid credentials but are refused at the
// realtime boundary.
func ValidateUserToken(tokenString string) (*CustomClaims, error) {
	claims, err := ValidateToken(tokenString)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.Kind != KindUser {
		return nil, apperrors.ErrNotUserToken
	}
	return claims, nil
}
