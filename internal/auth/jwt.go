package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const deviceTokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// DeviceClaims are the claims carried by a device's access token.
type DeviceClaims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates device tokens with an HMAC
// secret shared across server instances.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator reads the signing secret from JWT_SECRET. An empty
// secret is a configuration error, not a default.
func NewAuthenticator() (*Authenticator, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	return &Authenticator{secret: []byte(secret)}, nil
}

// NewAuthenticatorWithSecret is for tests and embedded setups.
func NewAuthenticatorWithSecret(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

// GenerateDeviceToken issues a 24h access token for a device.
func (a *Authenticator) GenerateDeviceToken(deviceID string) (string, error) {
	if deviceID == "" {
		return "", errors.New("device ID cannot be empty")
	}
	now := time.Now()
	claims := &DeviceClaims{
		DeviceID: deviceID,
		Role:     "device",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(deviceTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies a device token.
func (a *Authenticator) ValidateToken(tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.DeviceID == "" {
		return nil, fmt.Errorf("%w: missing device_id claim", ErrInvalidToken)
	}
	return claims, nil
}
