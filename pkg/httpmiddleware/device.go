package httpmiddleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// DeviceHeader carries the device id for clients that manage it.
	DeviceHeader = "X-Device-ID"
	// DeviceCookie carries the device id for browsers.
	DeviceCookie = "device_id"

	deviceCookieAge = 365 * 24 * time.Hour
)

type deviceIDKey struct{}

// DeviceIDFromContext returns the device id, or "".
func DeviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDKey{}).(string)
	return id
}

// WithDeviceID stores id in ctx.
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceIDKey{}, id)
}

// DeviceID identifies the shopper's device by the X-Device-ID header, then
// the device_id cookie. A new id is minted when neither is usable and the
// cookie is (re)issued whenever the header was not the source.
func DeviceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(DeviceHeader)
			if !printableID(id, 64) {
				id = ""
				if c, err := r.Cookie(DeviceCookie); err == nil && printableID(c.Value, 64) {
					id = c.Value
				} else {
					id = uuid.NewString()
				}
				http.SetCookie(w, &http.Cookie{
					Name:     DeviceCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(deviceCookieAge / time.Second),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(DeviceHeader, id)
			next.ServeHTTP(w, r.WithContext(WithDeviceID(r.Context(), id)))
		})
	}
}
