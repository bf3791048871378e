package bookmarket_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	bm "github.com/vallury/bookmarket"
)

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (ta *testApp) upload(t *testing.T, path, token, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, req)
	return w
}

func TestUploadFile(t *testing.T) {
	ta := newTestApp(t)
	token := ta.seedUser(t, "u1", "ann@example.com", bm.RoleBuyer)

	w := ta.upload(t, "/api/upload/upload", "", "file", "notes.pdf", []byte("pdf bytes"))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", w.Code)
	}

	w = ta.upload(t, "/api/upload/upload", token, "file", "notes.pdf", []byte("pdf bytes"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := decodeBody(t, w)["data"].(map[string]any)
	url, _ := data["url"].(string)
	if !strings.HasPrefix(url, "/uploads/") || !strings.HasSuffix(url, ".pdf") {
		t.Errorf("unexpected stored url %q", url)
	}
	if data["original_name"] != "notes.pdf" || data["size"] != float64(len("pdf bytes")) {
		t.Errorf("unexpected record: %v", data)
	}

	// progress was pushed start to finish
	progress := ta.events.byName("upload:progress")
	if len(progress) < 2 {
		t.Fatalf("expected progress events, got %d", len(progress))
	}
	last, _ := progress[len(progress)-1].Payload.(map[string]any)
	if last["progress"] != 100 {
		t.Errorf("expected final progress 100, got %v", last["progress"])
	}

	// and the record shows up in the listing
	w = ta.do(t, "GET", "/api/upload/files", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	files, _ := decodeBody(t, w)["data"].([]any)
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %d", len(files))
	}
}

func TestUploadRejectsBadType(t *testing.T) {
	ta := newTestApp(t)
	token := ta.seedUser(t, "u1", "ann@example.com", bm.RoleBuyer)

	w := ta.upload(t, "/api/upload/upload", token, "file", "script.sh", []byte("#!/bin/sh"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["message"]; got != "Invalid file type. Only JPEG, PNG, GIF, PDF and DOC files are allowed" {
		t.Errorf("unexpected message %q", got)
	}
	if len(ta.events.byName("upload:error")) == 0 {
		t.Error("expected an upload:error event")
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	ta := newTestApp(t)
	token := ta.seedUser(t, "u1", "ann@example.com", bm.RoleBuyer)

	w := ta.upload(t, "/api/upload/upload", token, "wrong-field", "notes.pdf", []byte("pdf bytes"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := decodeBody(t, w)["message"]; got != "No file uploaded" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestProfilePictureUpload(t *testing.T) {
	ta := newTestApp(t)
	token := ta.seedUser(t, "u1", "ann@example.com", bm.RoleBuyer)

	// documents are not profile pictures
	w := ta.upload(t, "/api/profile-picture/upload", token, "profilePicture", "cv.pdf", []byte("pdf"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("pdf: expected 400, got %d", w.Code)
	}
	if got := decodeBody(t, w)["message"]; got != "Invalid file type. Only JPEG, PNG and GIF images are allowed" {
		t.Errorf("unexpected message %q", got)
	}

	w = ta.upload(t, "/api/profile-picture/upload", token, "profilePicture", "me.png", []byte("png bytes"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := decodeBody(t, w)["data"].(map[string]any)
	pictureURL, _ := data["profile_picture_url"].(string)
	if !strings.HasPrefix(pictureURL, "/uploads/") {
		t.Errorf("unexpected picture url %q", pictureURL)
	}

	// persisted on the account
	user, err := ta.users.GetUserByID("u1")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.ProfilePictureURL == nil || *user.ProfilePictureURL != pictureURL {
		t.Errorf("expected stored picture url %q, got %v", pictureURL, user.ProfilePictureURL)
	}

	// both events go to the caller's room
	if evs := ta.events.byName("profile:updated"); len(evs) != 1 || evs[0].UserID != "u1" {
		t.Errorf("expected one profile:updated for u1, got %v", evs)
	}
	if evs := ta.events.byName("user:updated"); len(evs) != 1 || evs[0].UserID != "u1" {
		t.Errorf("expected one user:updated for u1, got %v", evs)
	}
}

func TestListFilesNewestFirst(t *testing.T) {
	ta := newTestApp(t)
	token := ta.seedUser(t, "u1", "ann@example.com", bm.RoleBuyer)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"first.pdf", "second.pdf", "third.pdf"} {
		err := ta.files.CreateFile(&bm.File{
			ID: name, UserID: "u1", Filename: name, OriginalName: name,
			URL: "/uploads/" + name, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed file %s: %v", name, err)
		}
	}

	w := ta.do(t, "GET", "/api/upload/files", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	files, _ := decodeBody(t, w)["data"].([]any)
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	first, _ := files[0].(map[string]any)
	if first["original_name"] != "third.pdf" {
		t.Errorf("expected newest first, got %v", first["original_name"])
	}
}
