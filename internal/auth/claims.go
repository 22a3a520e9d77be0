package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeDevice TokenType = "device"

// Claims are the only supported JWT claims shape for the signaling handshake.
// UserID addresses calls; DeviceID distinguishes concurrent sessions of the
// same user so the relay can route call-signal payloads to the right socket.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	TokenType TokenType `json:"token_type"`
}
