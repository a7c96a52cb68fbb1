package auth

import (
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		shouldFail bool
	}{
		{name: "valid strong password", password: "SecureP@ss123", shouldFail: false},
		{name: "too short", password: "Pass@1", shouldFail: true},
		{name: "missing uppercase", password: "securepass@123", shouldFail: true},
		{name: "missing lowercase", password: "SECUREPASS@123", shouldFail: true},
		{name: "missing digit", password: "SecurePass@xyz", shouldFail: true},
		{name: "missing special character", password: "SecurePass123", shouldFail: true},
		{name: "common password rejected", password: "password123", shouldFail: true},
		{name: "valid with symbols", password: "MyP@ssw0rd!", shouldFail: false},
		{name: "too long", password: strings.Repeat("Aa1!", 40), shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.shouldFail && err == nil {
				t.Errorf("expected password %q to fail validation", tt.password)
			}
			if !tt.shouldFail && err != nil {
				t.Errorf("expected password %q to pass validation, got: %v", tt.password, err)
			}
			if tt.shouldFail && err != nil && err.Error() != "invalid password" {
				t.Errorf("validation errors must stay generic, got %q", err.Error())
			}
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("SecureP@ss123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "SecureP@ss123" {
		t.Fatal("hash must not equal the plain password")
	}
	if err := ComparePassword(hash, "SecureP@ss123"); err != nil {
		t.Errorf("ComparePassword rejected the correct password: %v", err)
	}
	if err := ComparePassword(hash, "WrongP@ss123"); err == nil {
		t.Error("ComparePassword accepted a wrong password")
	}
}

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("GenerateOpaqueToken failed: %v", err)
	}
	b, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("GenerateOpaqueToken failed: %v", err)
	}
	if a == b {
		t.Error("two generated tokens were identical")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("token %q is not URL safe", a)
	}
}
