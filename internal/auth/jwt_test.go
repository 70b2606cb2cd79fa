package auth

import (
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	v, err := NewJWTVerifier("test-secret")
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	raw, err := v.Sign("u42", "driver", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ident, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ident.UserID != "u42" || ident.Role != "driver" {
		t.Fatalf("identity = %+v", ident)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	v, _ := NewJWTVerifier("test-secret")
	other, _ := NewJWTVerifier("other-secret")
	raw, err := other.Sign("u42", "driver", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := v.Verify(raw); err == nil {
		t.Fatal("expected verification failure for wrong secret")
	}
	if _, err := v.Verify("not-a-jwt"); err == nil {
		t.Fatal("expected verification failure for malformed token")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, _ := NewJWTVerifier("test-secret")
	raw, err := v.Sign("u42", "driver", -time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := v.Verify(raw); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}
