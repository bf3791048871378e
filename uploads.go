package bookmarket

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxUploadSize bounds generic document uploads.
	MaxUploadSize = 10 << 20
	// MaxProfilePictureSize bounds profile picture uploads.
	MaxProfilePictureSize = 5 << 20
)

var uploadExtensions = map[string]bool{
	".jpeg": true, ".jpg": true, ".png": true, ".gif": true,
	".pdf": true, ".doc": true, ".docx": true,
}

var imageExtensions = map[string]bool{
	".jpeg": true, ".jpg": true, ".png": true, ".gif": true,
}

// Notifier pushes an event to every live connection of one user.
// Pushes are advisory so a nil Notifier is a valid configuration.
type Notifier interface {
	Publish(userID, event string, payload any)
}

// UploadsAPI handles multipart uploads and the caller's file listing.
type UploadsAPI struct {
	Users  UserStore
	Files  FileStore
	Blobs  BlobStore
	Notify Notifier
	Logger *zap.Logger

	// BaseURL prefixes stored filenames to build public URLs,
	// "/uploads" by default.
	BaseURL string

	Now func() time.Time
}

func (u *UploadsAPI) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

func (u *UploadsAPI) logger() *zap.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return zap.NewNop()
}

func (u *UploadsAPI) baseURL() string {
	if u.BaseURL != "" {
		return u.BaseURL
	}
	return "/uploads"
}

func (u *UploadsAPI) publish(userID, event string, payload any) {
	if u.Notify != nil {
		u.Notify.Publish(userID, event, payload)
	}
}

func (u *UploadsAPI) publishError(userID, message string) {
	u.publish(userID, "upload:error", map[string]any{"message": message})
}

func (u *UploadsAPI) publishProgress(userID string, progress int, message string) {
	u.publish(userID, "upload:progress", map[string]any{
		"progress": progress,
		"message":  message,
	})
}

// HandleUpload accepts one document in the "file" field and records it
// against the caller.
func (u *UploadsAPI) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	file, header, ok := u.readUpload(w, r, userID, "file", MaxUploadSize, uploadExtensions,
		"Invalid file type. Only JPEG, PNG, GIF, PDF and DOC files are allowed")
	if !ok {
		return
	}
	defer file.Close()

	u.publishProgress(userID, 10, "Upload started")

	now := u.now()
	stored := uniqueFilename("file", header.Filename, now)
	size, err := u.Blobs.Save(stored, file)
	if err != nil {
		u.logger().Error("store upload failed", zap.Error(err))
		u.publishError(userID, "Failed to store file")
		writeMessage(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	u.publishProgress(userID, 70, "File stored")

	rec := &File{
		ID:           uuid.NewString(),
		UserID:       userID,
		Filename:     stored,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         size,
		URL:          u.baseURL() + "/" + stored,
		CreatedAt:    now,
	}
	if err := u.Files.CreateFile(rec); err != nil {
		u.logger().Error("record upload failed", zap.Error(err))
		if derr := u.Blobs.Delete(stored); derr != nil {
			u.logger().Warn("orphaned blob cleanup failed", zap.String("filename", stored), zap.Error(derr))
		}
		u.publishError(userID, "Failed to save file record")
		writeMessage(w, http.StatusInternalServerError, "Failed to save file record")
		return
	}

	u.publishProgress(userID, 100, "Upload complete")

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "File uploaded successfully",
		"data":    rec,
	})
}

// HandleListFiles returns the caller's uploads, newest first.
func (u *UploadsAPI) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	files, err := u.Files.ListUserFiles(userID)
	if err != nil {
		u.logger().Error("list files failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Files retrieved successfully",
		"data":    files,
	})
}

// HandleProfilePictureUpload replaces the caller's profile picture. The
// stored blob is removed again if the profile update cannot be saved.
func (u *UploadsAPI) HandleProfilePictureUpload(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	file, header, ok := u.readUpload(w, r, userID, "profilePicture", MaxProfilePictureSize, imageExtensions,
		"Invalid file type. Only JPEG, PNG and GIF images are allowed")
	if !ok {
		return
	}
	defer file.Close()

	u.publishProgress(userID, 10, "Upload started")

	now := u.now()
	stored := uniqueFilename("profile", header.Filename, now)
	if _, err := u.Blobs.Save(stored, file); err != nil {
		u.logger().Error("store profile picture failed", zap.Error(err))
		u.publishError(userID, "Failed to store file")
		writeMessage(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	u.publishProgress(userID, 60, "File stored")

	url := u.baseURL() + "/" + stored
	user, err := u.Users.UpdateUser(userID, UserUpdate{ProfilePictureURL: &url})
	if err != nil {
		if derr := u.Blobs.Delete(stored); derr != nil {
			u.logger().Warn("orphaned blob cleanup failed", zap.String("filename", stored), zap.Error(derr))
		}
		if errors.Is(err, ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		u.logger().Error("update profile picture failed", zap.Error(err))
		u.publishError(userID, "Failed to update profile")
		writeMessage(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	u.publishProgress(userID, 100, "Upload complete")
	u.publish(userID, "profile:updated", map[string]any{"profile_picture_url": url})
	u.publish(userID, "user:updated", user.Public())

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile picture updated successfully",
		"data":    user.Public(),
	})
}

// readUpload parses the multipart form and validates size and extension.
// On failure the response has already been written.
func (u *UploadsAPI) readUpload(w http.ResponseWriter, r *http.Request, userID, field string, maxSize int64, allowed map[string]bool, typeMessage string) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		u.publishError(userID, "File too large")
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("File too large. Maximum size is %dMB", maxSize>>20))
		return nil, nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return nil, nil, false
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowed[ext] {
		file.Close()
		u.publishError(userID, typeMessage)
		writeMessage(w, http.StatusBadRequest, typeMessage)
		return nil, nil, false
	}
	return file, header, true
}
