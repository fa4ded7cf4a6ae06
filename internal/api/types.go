package api

import "time"

// DeviceAuthRequest is the payload a device posts to exchange its
// provisioning secret for a session token.
type DeviceAuthRequest struct {
	DeviceID  string `json:"device_id" validate:"required"`
	SecretKey string `json:"secret_key" validate:"required"`
}

// DeviceAuthResponse carries the issued token.
type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// ProcessFileResponse is the outcome of a one-shot file run through
// the pipeline.
type ProcessFileResponse struct {
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
	Format     string `json:"format"`
	AudioBytes int    `json:"audio_bytes"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
