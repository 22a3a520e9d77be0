package auth

import (
	"errors"
	"time"

	"homecall/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(cfg config.SignalingConfig) (*Manager, error) {
	if cfg.TokenSecret == "" {
		return nil, errors.New("SIGNALING_TOKEN_SECRET is required")
	}

	return &Manager{
		secret: []byte(cfg.TokenSecret),
		ttl:    cfg.TokenTTL,
	}, nil
}

/* ===================== ISSUE TOKEN ===================== */

// IssueDeviceToken mints the bearer token presented on the signaling
// handshake. The relay verifies it with the shared secret.
func (m *Manager) IssueDeviceToken(now time.Time, userID, deviceID string) (string, error) {
	if userID == "" {
		return "", errors.New("user_id is required")
	}
	if deviceID == "" {
		return "", errors.New("device_id is required")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		UserID:    userID,
		DeviceID:  deviceID,
		TokenType: TokenTypeDevice,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

/* ===================== VERIFY TOKEN ===================== */

func (m *Manager) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	validator := jwt.NewValidator(
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err := validator.Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	if claims.TokenType != TokenTypeDevice {
		return Claims{}, errors.New("token_type mismatch")
	}
	if claims.UserID == "" {
		return Claims{}, errors.New("user_id missing")
	}
	if claims.DeviceID == "" {
		return Claims{}, errors.New("device_id missing")
	}

	return claims, nil
}
