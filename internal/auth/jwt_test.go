package auth

import (
	"testing"
	"time"

	"homecall/internal/config"
)

func TestIssueAndVerifyDeviceToken(t *testing.T) {
	m, err := NewManager(config.SignalingConfig{
		TokenSecret: "secret",
		TokenTTL:    15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	token, err := m.IssueDeviceToken(now, "user-1", "device-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a token string")
	}

	claims, err := m.Verify(token, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.DeviceID != "device-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(config.SignalingConfig{TokenSecret: "secret", TokenTTL: time.Minute})
	now := time.Unix(1700000000, 0).UTC()
	token, err := m.IssueDeviceToken(now, "u", "d")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestIssueRequiresIdentity(t *testing.T) {
	m, _ := NewManager(config.SignalingConfig{TokenSecret: "secret", TokenTTL: time.Minute})
	if _, err := m.IssueDeviceToken(time.Now(), "", "d"); err == nil {
		t.Fatalf("expected user_id error")
	}
	if _, err := m.IssueDeviceToken(time.Now(), "u", ""); err == nil {
		t.Fatalf("expected device_id error")
	}
}
