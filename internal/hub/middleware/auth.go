package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openrace/fieldsync/internal/hub/handlers"
	"github.com/openrace/fieldsync/internal/hub/storage"
)

// AuthMiddleware validates the device access token and attributes the
// request to a registered device. Unauthenticated or unregistered-device
// requests never reach the deduplication engine.
func AuthMiddleware(logger *slog.Logger, jwtConfig handlers.JWTConfig, devices storage.DeviceStorage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("missing Authorization header")
				http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			// Expected format: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("invalid Authorization header format")
				http.Error(w, "Unauthorized: invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := handlers.ValidateAccessToken(jwtConfig, parts[1])
			if err != nil {
				logger.Warn("invalid access token", "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			// A valid token for a deregistered device is still rejected.
			if _, err := devices.GetDevice(r.Context(), claims.DeviceID); err != nil {
				if errors.Is(err, storage.ErrDeviceNotFound) {
					logger.Warn("token for unregistered device", "device_id", claims.DeviceID)
					http.Error(w, "Unauthorized: unknown device", http.StatusUnauthorized)
					return
				}
				logger.Error("device lookup failed", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), handlers.DeviceIDKey, claims.DeviceID)
			ctx = context.WithValue(ctx, handlers.DeviceNameKey, claims.DeviceName)

			logger.Debug("device authenticated", "device_id", claims.DeviceID, "name", claims.DeviceName)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
