package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestVerify(t *testing.T) {
	v := NewJWTVerifier(secret)

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{"numeric user_id", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": 42}), "42", false},
		{"string user_id", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": "u-7"}), "u-7", false},
		{"subject fallback", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "writer"}), "writer", false},
		{"no user", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"role": "admin"}), "", true},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": 1}), "", true},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"user_id": 1}), "", true},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": 1, "exp": time.Now().Add(-time.Hour).Unix()}), "", true},
		{"garbage", "not.a.token", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthorized) {
					t.Errorf("expected ErrUnauthorized, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v", tt.header, got, ok)
		}
	}
}
