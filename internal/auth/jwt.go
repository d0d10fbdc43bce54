package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "nft-tickets"

var ErrInvalidToken = errors.New("invalid token")

// Claims identify gate staff. StationID is empty for tokens not bound to
// a single station.
type Claims struct {
	StaffID   string `json:"staff_id"`
	Role      string `json:"role"`
	StationID string `json:"station_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateJWT создаёт JWT для сотрудника на входе.
// expiration: время жизни токена (например 12h). Если <= 0, используется 12h.
func GenerateJWT(secret, staffID, role, stationID string, expiration time.Duration) (string, error) {
	if expiration <= 0 {
		expiration = 12 * time.Hour
	}

	now := time.Now()
	claims := Claims{
		StaffID:   staffID,
		Role:      role,
		StationID: stationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staffID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.StaffID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
