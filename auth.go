package bookmarket

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Auth orchestrates signup, OTP verification, login, password reset and
// OAuth account linking. All collaborators are injected; there is no
// package-level state.
type Auth struct {
	Users  UserStore
	Email  EmailSender
	Tokens *TokenIssuer
	Logger *zap.Logger

	// FrontendURL is where OAuth callbacks redirect to.
	FrontendURL string

	// Now is the clock used for OTP expiry. Defaults to time.Now.
	Now func() time.Time
}

func (a *Auth) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Auth) logger() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.NewNop()
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword verifies a plaintext password against a stored hash.
// A nil hash (OAuth-only account) fails verification rather than
// erroring out.
func CheckPassword(hash *string, plain string) bool {
	if hash == nil || *hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(plain)) == nil
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

// HandleSignup processes user registration. A fresh email gets a new
// account plus a verification code; an email that already has an
// account gets a re-issued code on the existing row, reported as a
// plain success so the response does not reveal whether an account was
// created. Verification status is not consulted on the resend branch.
func (a *Auth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if authErr := validateSignup(&req); authErr != nil {
		writeAuthError(w, http.StatusBadRequest, authErr)
		return
	}

	existing, err := a.Users.GetUserByEmail(req.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		a.logger().Error("signup: lookup failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	if existing != nil {
		if !a.issueSignupOTP(w, req.Email, existing.Name) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Verification OTP sent to your email address.",
			"success": true,
		})
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		a.logger().Error("signup: hash failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	user := &User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: &hash,
		Role:         RoleBuyer,
	}
	if err := a.Users.CreateUser(user); err != nil {
		// Two simultaneous signups can both miss the existence check;
		// the store's unique-email constraint is the real guard.
		a.logger().Warn("signup: create failed", zap.String("email", req.Email), zap.Error(err))
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	// The account is not rolled back if the email send fails below: the
	// row stays in an unverified limbo until the user re-signs up.
	if !a.issueSignupOTP(w, req.Email, user.Name) {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Account created. Please check your email for verification OTP.",
		"success": true,
	})
}

// issueSignupOTP stores a fresh code and emails it. On failure it
// writes the error response and returns false.
func (a *Auth) issueSignupOTP(w http.ResponseWriter, email, name string) bool {
	otp, err := GenerateOTP()
	if err != nil {
		a.logger().Error("signup: otp generation failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return false
	}
	if err := a.Users.SetOTP(email, otp, a.now().Add(OTPExpiry)); err != nil {
		a.logger().Error("signup: otp store failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return false
	}
	if err := a.Email.SendSignupOTPEmail(email, otp, name); err != nil {
		a.logger().Error("signup: otp email failed", zap.String("email", email), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to send verification email. Please try again later.")
		return false
	}
	return true
}

// HandleLogin authenticates an email/password pair. Unknown email,
// wrong password and a passwordless OAuth-only account all yield the
// same 401 so responses cannot be used to enumerate accounts.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := a.Users.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		a.logger().Error("login: lookup failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	if !CheckPassword(user.PasswordHash, req.Password) {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := a.Tokens.IssueSession(user.ID)
	if err != nil {
		a.logger().Error("login: token signing failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    user.Public(),
	})
}

// HandleLogout clears the session cookie. Tokens are stateless, so
// there is nothing to revoke server side.
func (a *Auth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// HandleVerifySignupOTP completes signup verification: checks the code,
// consumes it, and issues a session.
func (a *Auth) HandleVerifySignupOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := VerifyOTP(a.Users, req.Email, req.OTP, a.now())
	if err != nil {
		a.logger().Error("verify signup otp failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if !result.Valid {
		writeMessage(w, http.StatusBadRequest, result.Message)
		return
	}

	if err := a.Users.ClearOTP(result.UserID); err != nil {
		a.logger().Error("verify signup otp: clear failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	user, err := a.Users.GetUserByID(result.UserID)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}

	token, err := a.Tokens.IssueSession(user.ID)
	if err != nil {
		a.logger().Error("verify signup otp: token signing failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	sendInBackground(a.logger(), "welcome", func() error {
		return a.Email.SendWelcomeEmail(user.Email, user.Name)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Account verified successfully",
		"token":   token,
		"user":    user.Public(),
	})
}

// HandleForgotPassword issues a reset code. Unlike login, an unknown
// email gets a distinct 404 here, which leaks account existence; the
// behavior is kept as-is rather than silently hardened.
func (a *Auth) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := a.Users.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		a.logger().Error("forgot password: lookup failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	otp, err := GenerateOTP()
	if err != nil {
		a.logger().Error("forgot password: otp generation failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if err := a.Users.SetOTP(req.Email, otp, a.now().Add(OTPExpiry)); err != nil {
		a.logger().Error("forgot password: otp store failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	// The code is already persisted at this point; a failed send leaves
	// it live until expiry.
	if err := a.Email.SendOTPEmail(req.Email, otp, user.Name); err != nil {
		a.logger().Error("forgot password: otp email failed", zap.String("email", req.Email), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to send OTP email. Please try again later.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "OTP sent to your email address",
		"success": true,
	})
}

// HandleVerifyOTP checks a code without consuming it, so the same code
// still works for the reset step that follows.
func (a *Auth) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := VerifyOTP(a.Users, req.Email, req.OTP, a.now())
	if err != nil {
		a.logger().Error("verify otp failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if !result.Valid {
		writeMessage(w, http.StatusBadRequest, result.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "OTP verified successfully",
		"data":    map[string]any{"verified": true},
	})
}

// HandleResetPasswordWithOTP verifies the code, replaces the password
// hash and consumes the code.
func (a *Auth) HandleResetPasswordWithOTP(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Password) < 6 {
		writeAuthError(w, http.StatusBadRequest,
			NewAuthError(ErrCodeWeakPassword, "Password must be at least 6 characters", "password"))
		return
	}

	result, err := VerifyOTP(a.Users, req.Email, req.OTP, a.now())
	if err != nil {
		a.logger().Error("reset password: verify failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if !result.Valid {
		writeMessage(w, http.StatusBadRequest, result.Message)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		a.logger().Error("reset password: hash failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if _, err := a.Users.UpdateUser(result.UserID, UserUpdate{PasswordHash: &hash}); err != nil {
		a.logger().Error("reset password: update failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if err := a.Users.ClearOTP(result.UserID); err != nil {
		a.logger().Error("reset password: clear failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeMessage(w, http.StatusOK, "Password reset successfully")
}

// HandleLegacyResetPassword rejects the retired token-link flow.
func (a *Auth) HandleLegacyResetPassword(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusBadRequest, "Legacy route not supported. Please use OTP-based reset.")
}

func validateSignup(req *signupRequest) *AuthError {
	if req.Name == "" {
		return NewAuthError(ErrCodeMissingField, "Name is required", "name")
	}
	if len(req.Name) < 2 || len(req.Name) > 50 {
		return NewAuthError(ErrCodeMissingField, "Name must be 2-50 characters", "name")
	}
	if req.Email == "" {
		return NewAuthError(ErrCodeMissingField, "Email is required", "email")
	}
	if !emailRegex.MatchString(req.Email) {
		return NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "email")
	}
	if req.Password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	if len(req.Password) < 6 {
		return NewAuthError(ErrCodeWeakPassword, "Password must be at least 6 characters", "password")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}

func writeAuthError(w http.ResponseWriter, status int, err *AuthError) {
	writeJSON(w, status, map[string]any{
		"message": err.Message,
		"code":    err.Code,
		"field":   err.Field,
	})
}
