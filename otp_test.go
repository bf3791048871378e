package bookmarket_test

import (
	"regexp"
	"testing"
	"time"

	bm "github.com/vallury/bookmarket"
	"github.com/vallury/bookmarket/stores"
)

func TestGenerateOTP(t *testing.T) {
	pattern := regexp.MustCompile(`^[1-9]\d{5}$`)
	for i := 0; i < 50; i++ {
		otp, err := bm.GenerateOTP()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !pattern.MatchString(otp) {
			t.Fatalf("expected 6 digits without a leading zero, got %q", otp)
		}
	}
}

func TestVerifyOTPReasons(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(10 * time.Minute)

	users := stores.NewMemUserStore()
	seed := func(t *testing.T, id, email string, otp string, set bool) {
		t.Helper()
		if err := users.CreateUser(&bm.User{ID: id, Name: "U", Email: email, Role: bm.RoleBuyer}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		if set {
			if err := users.SetOTP(email, otp, expiry); err != nil {
				t.Fatalf("seed otp: %v", err)
			}
		}
	}
	seed(t, "u1", "has-otp@example.com", "123456", true)
	seed(t, "u2", "no-otp@example.com", "", false)

	tests := []struct {
		name    string
		email   string
		otp     string
		at      time.Time
		valid   bool
		message string
	}{
		{
			name: "unknown user", email: "nobody@example.com", otp: "123456", at: now,
			message: "User not found",
		},
		{
			name: "no code issued", email: "no-otp@example.com", otp: "123456", at: now,
			message: "No OTP found. Please request a new one.",
		},
		{
			name: "expired code", email: "has-otp@example.com", otp: "123456", at: expiry.Add(time.Second),
			message: "OTP has expired. Please request a new one.",
		},
		{
			name: "expiry instant still accepted", email: "has-otp@example.com", otp: "123456", at: expiry,
			valid: true,
		},
		{
			name: "wrong code", email: "has-otp@example.com", otp: "654321", at: now,
			message: "Invalid OTP. Please try again.",
		},
		{
			name: "valid code", email: "has-otp@example.com", otp: "123456", at: now,
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := bm.VerifyOTP(users, tt.email, tt.otp, tt.at)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if result.Valid != tt.valid {
				t.Fatalf("expected valid=%v, got %v (%q)", tt.valid, result.Valid, result.Message)
			}
			if !tt.valid && result.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, result.Message)
			}
			if tt.valid && result.UserID == "" {
				t.Error("expected the matched user id on success")
			}
		})
	}
}

func TestVerifyOTPDoesNotConsume(t *testing.T) {
	users := stores.NewMemUserStore()
	if err := users.CreateUser(&bm.User{ID: "u1", Name: "U", Email: "u@example.com", Role: bm.RoleBuyer}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	now := time.Now()
	if err := users.SetOTP("u@example.com", "123456", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("seed otp: %v", err)
	}

	for i := 0; i < 3; i++ {
		result, err := bm.VerifyOTP(users, "u@example.com", "123456", now)
		if err != nil {
			t.Fatalf("verify round %d: %v", i+1, err)
		}
		if !result.Valid {
			t.Fatalf("round %d: expected the code to stay valid, got %q", i+1, result.Message)
		}
	}
}
