package auth

import (
	"crypto/subtle"
	"errors"
)

var (
	ErrStaffLoginDisabled = errors.New("staff login is disabled")
	ErrInvalidAPIKey      = errors.New("invalid api key")
)

// CheckAPIKey compares a presented staff key with the configured one in
// constant time. An empty configured key disables staff login.
func CheckAPIKey(configured, presented string) error {
	if configured == "" {
		return ErrStaffLoginDisabled
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}
