package bookmarket

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OTPLength is the number of digits in a one-time password.
const OTPLength = 6

// OTPExpiry is how long an issued code stays valid.
const OTPExpiry = 10 * time.Minute

// GenerateOTP produces a fixed-length numeric one-time code.
func GenerateOTP() (string, error) {
	// 100000..999999 so the code never has a leading zero to drop.
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// OTPVerification is the outcome of checking a candidate code.
type OTPVerification struct {
	Valid   bool
	Message string
	UserID  string
	User    *User
}

// VerifyOTP checks a candidate code against the stored one. Each check
// short-circuits with its own reason. The check never mutates state:
// clearing a consumed code is the caller's responsibility, so one code
// can serve both a standalone verify step and the reset that follows it.
func VerifyOTP(users UserStore, email, otp string, now time.Time) (OTPVerification, error) {
	user, err := users.GetUserByEmail(email)
	if err != nil {
		if err == ErrUserNotFound {
			return OTPVerification{Valid: false, Message: "User not found"}, nil
		}
		return OTPVerification{}, err
	}

	if user.OTP == nil {
		return OTPVerification{Valid: false, Message: "No OTP found. Please request a new one."}, nil
	}

	if user.OTPExpiry != nil && now.After(*user.OTPExpiry) {
		return OTPVerification{Valid: false, Message: "OTP has expired. Please request a new one."}, nil
	}

	if *user.OTP != otp {
		return OTPVerification{Valid: false, Message: "Invalid OTP. Please try again."}, nil
	}

	return OTPVerification{Valid: true, UserID: user.ID, User: user}, nil
}
