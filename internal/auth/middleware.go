package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const seatKey contextKey = "seat"

// Middleware returns an HTTP middleware that validates seat tokens.
// Extracts the token from the Authorization header (Bearer scheme)
// and stores the seat in the request context.
func Middleware(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			claims, err := jwtMgr.ValidateToken(token)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			ctx := WithSeat(r.Context(), Seat{MatchID: claims.MatchID, FactionID: claims.FactionID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// WithSeat stores a seat in ctx.
func WithSeat(ctx context.Context, s Seat) context.Context {
	return context.WithValue(ctx, seatKey, s)
}

// SeatFromContext extracts the authenticated seat from the request context.
func SeatFromContext(ctx context.Context) (Seat, bool) {
	s, ok := ctx.Value(seatKey).(Seat)
	return s, ok
}
