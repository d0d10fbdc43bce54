package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func TestJWT_RoundTrip(t *testing.T) {
	token, err := GenerateJWT(testSecret, "staff-1", "gate", "gate-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(testSecret, token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.StaffID != "staff-1" || claims.Role != "gate" || claims.StationID != "gate-1" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.Subject != "staff-1" {
		t.Errorf("subject = %q, want staff-1", claims.Subject)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl <= 0 || ttl > time.Hour {
		t.Errorf("unexpected ttl %v", ttl)
	}
}

func TestJWT_DefaultExpiration(t *testing.T) {
	token, err := GenerateJWT(testSecret, "staff-1", "gate", "", 0)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ParseJWT(testSecret, token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl < 11*time.Hour || ttl > 12*time.Hour {
		t.Errorf("ttl = %v, want ~12h", ttl)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	token, _ := GenerateJWT(testSecret, "staff-1", "gate", "", time.Hour)
	if _, err := ParseJWT("other-secret", token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestJWT_Expired(t *testing.T) {
	// токен истёк минуту назад
	claims := Claims{
		StaffID: "staff-1",
		Role:    "gate",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			Issuer:    issuer,
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))

	_, err := ParseJWT(testSecret, token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWT_ForeignIssuer(t *testing.T) {
	claims := Claims{
		StaffID: "staff-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))

	if _, err := ParseJWT(testSecret, token); !errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		t.Errorf("expected ErrTokenInvalidIssuer, got %v", err)
	}
}

func TestJWT_MissingStaffID(t *testing.T) {
	token, _ := GenerateJWT(testSecret, "", "gate", "", time.Hour)
	if _, err := ParseJWT(testSecret, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		StaffID: "staff-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    issuer,
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)

	if _, err := ParseJWT(testSecret, token); err == nil {
		t.Error("expected error for alg=none")
	}
}

func TestCheckAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		presented  string
		want       error
	}{
		{"match", "k3y", "k3y", nil},
		{"mismatch", "k3y", "key", ErrInvalidAPIKey},
		{"empty presented", "k3y", "", ErrInvalidAPIKey},
		{"login disabled", "", "", ErrStaffLoginDisabled},
		{"login disabled ignores key", "", "k3y", ErrStaffLoginDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CheckAPIKey(tt.configured, tt.presented); !errors.Is(err, tt.want) {
				t.Errorf("CheckAPIKey = %v, want %v", err, tt.want)
			}
		})
	}
}
