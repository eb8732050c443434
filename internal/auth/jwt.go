package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing authorization token")
)

// Claims holds the seat token payload. A seat token lets its bearer issue
// commands for one faction in one match.
type Claims struct {
	MatchID   string `json:"match_id"`
	FactionID string `json:"faction_id"`
	jwt.RegisteredClaims
}

// Seat identifies the match and faction a request acts for.
type Seat struct {
	MatchID   string
	FactionID string
}

// JWTManager handles seat token creation and validation.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTManager creates a JWTManager. A zero ttl defaults to two hours.
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl}
}

// TTL returns how long issued seat tokens stay valid.
func (m *JWTManager) TTL() time.Duration { return m.ttl }

// GenerateSeatToken signs a token for one faction's seat in a match.
func (m *JWTManager) GenerateSeatToken(matchID, factionID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		MatchID:   matchID,
		FactionID: factionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   matchID + "/" + factionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT string, returning the claims.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.MatchID == "" || claims.FactionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
