package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chathub/domain"
)

// Claims defines the structure of the data stored inside the JWT.
// Capabilities are snapshotted at issue time; a session admitted with
// this token keeps them for its whole lifetime.
type Claims struct {
	UserID       string   `json:"user_id"`
	DisplayName  string   `json:"display_name"`
	Email        string   `json:"email"`
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a verified identity.
func GenerateToken(identity domain.Identity, secret []byte, duration time.Duration) (string, error) {
	capabilities := make([]string, len(identity.Capabilities))
	for i, c := range identity.Capabilities {
		capabilities[i] = string(c)
	}

	claims := &Claims{
		UserID:       string(identity.UserID),
		DisplayName:  identity.DisplayName,
		Email:        identity.Email,
		Capabilities: capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chathub",
		},
	}

	// HS256 (HMAC with SHA256), signed with the server secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses and validates the signature and expiration of a JWT
// string, returning the identity it carries.
func ValidateToken(tokenString string, secret []byte) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return domain.Identity{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, jwt.ErrSignatureInvalid
	}

	capabilities := make([]domain.Capability, len(claims.Capabilities))
	for i, c := range claims.Capabilities {
		capabilities[i] = domain.Capability(c)
	}

	return domain.Identity{
		UserID:       domain.UserID(claims.UserID),
		Email:        claims.Email,
		DisplayName:  claims.DisplayName,
		Capabilities: capabilities,
	}, nil
}
