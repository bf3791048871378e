package bookmarket

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ProfileAPI serves the caller's own account record. The profile update
// is the only place a user can change their role.
type ProfileAPI struct {
	Users  UserStore
	Notify Notifier
	Logger *zap.Logger
}

func (p *ProfileAPI) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

func (p *ProfileAPI) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := p.Users.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		p.logger().Error("get profile failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile retrieved successfully",
		"data":    user.Public(),
	})
}

func (p *ProfileAPI) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" {
		writeMessage(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		writeMessage(w, http.StatusBadRequest, "Please provide a valid email address")
		return
	}

	upd := UserUpdate{Name: &req.Name, Email: &req.Email}
	if req.Role != "" {
		role := Role(req.Role)
		if !ValidRole(role) {
			writeMessage(w, http.StatusBadRequest, "Invalid role")
			return
		}
		upd.Role = &role
	}

	user, err := p.Users.UpdateUser(userID, upd)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			writeMessage(w, http.StatusNotFound, "User not found")
		case errors.Is(err, ErrEmailExists):
			writeMessage(w, http.StatusBadRequest, "Email is already in use")
		default:
			p.logger().Error("update profile failed", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	if p.Notify != nil {
		p.Notify.Publish(userID, "user:updated", user.Public())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"data":    user.Public(),
	})
}
