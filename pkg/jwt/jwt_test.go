package jwt

import (
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("test-secret", time.Minute, "eventsnap")

	token, err := m.GenerateToken("user-1", "u@example.com", "alice", []string{"operator"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Username != "alice" {
		t.Fatalf("claims = %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "operator" {
		t.Fatalf("roles = %v", claims.Roles)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	m := NewManager("secret-a", time.Minute, "eventsnap")
	other := NewManager("secret-b", time.Minute, "eventsnap")

	token, err := m.GenerateToken("user-1", "", "", nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("token validated with the wrong secret")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-secret", -time.Minute, "eventsnap")

	token, err := m.GenerateToken("user-1", "", "", nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := NewManager("test-secret", time.Minute, "eventsnap")
	if _, err := m.ValidateToken("not-a-token"); err == nil {
		t.Fatal("garbage token validated")
	}
}
