package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for missing, malformed or invalid credentials
var ErrUnauthorized = errors.New("unauthorized")

// Verifier turns a bearer credential into a user id
type Verifier interface {
	Verify(token string) (string, error)
}

// JWTVerifier verifies HS256 tokens carrying a user_id or sub claim
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims", ErrUnauthorized)
	}

	switch id := claims["user_id"].(type) {
	case string:
		if id != "" {
			return id, nil
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("%w: token carries no user id", ErrUnauthorized)
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
