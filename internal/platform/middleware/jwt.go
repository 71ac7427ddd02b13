package middleware

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator validates HMAC-signed tokens issued by the dashboard's
// auth service. The user key travels in the standard subject claim.
type JWTValidator struct {
	signingKey []byte
}

// NewJWTValidator returns a validator over the shared signing key.
func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{signingKey: []byte(signingKey)}
}

func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	out := &Claims{UserKey: subject}
	if sid, ok := claims["sid"].(string); ok {
		out.SessionID = sid
	}
	return out, nil
}
