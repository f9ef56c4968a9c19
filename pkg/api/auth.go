package api

// RegisterDeviceRequest registers a new field device with the hub.
type RegisterDeviceRequest struct {
	Name string `json:"name"` // human-readable device name, unique per hub
	Key  string `json:"key"`  // device key; the hub stores only its hash
}

// RegisterDeviceResponse confirms registration.
type RegisterDeviceResponse struct {
	DeviceID string `json:"device_id"`
	Message  string `json:"message"`
}

// LoginRequest authenticates a registered device.
type LoginRequest struct {
	DeviceID string `json:"device_id"`
	Key      string `json:"key"`
}

// TokenResponse carries the access token for subsequent sync requests.
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	ExpiresIn   int64  `json:"expires_in"`   // lifetime in seconds
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
