package bookmarket_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	bm "github.com/vallury/bookmarket"
	"github.com/vallury/bookmarket/stores"
)

func TestRequireUser(t *testing.T) {
	users := stores.NewMemUserStore()
	tokens := &bm.TokenIssuer{SecretKey: "test-secret"}
	mw := &bm.Middleware{Tokens: tokens, Users: users}

	if err := users.CreateUser(&bm.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Role: bm.RoleBuyer}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	valid, err := tokens.IssueSession("u1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	deleted, err := tokens.IssueSession("gone")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var seenUserID string
	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = bm.GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{name: "no token", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-token", status: http.StatusUnauthorized},
		{name: "token for deleted user", header: "Bearer " + deleted, status: http.StatusUnauthorized},
		{name: "valid bearer token", header: "Bearer " + valid, status: http.StatusOK},
		{name: "valid cookie token", cookie: valid, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenUserID = ""
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.status == http.StatusOK && seenUserID != "u1" {
				t.Errorf("expected user id in context, got %q", seenUserID)
			}
		})
	}
}

// A role change takes effect on the next request with the same token,
// since the role comes from the store rather than the token.
func TestRequireRoleReadsCurrentRole(t *testing.T) {
	ta := newTestApp(t)
	token := ta.seedUser(t, "u1", "ann@example.com", bm.RoleBuyer)

	payload := map[string]any{
		"title": "Dune", "author": "Frank Herbert",
		"type": "fiction", "price": 9.5, "condition": "good",
	}

	w := ta.do(t, "POST", "/api/books", token, payload)
	if w.Code != http.StatusForbidden {
		t.Fatalf("as buyer: expected 403, got %d", w.Code)
	}

	role := bm.RoleSeller
	if _, err := ta.users.UpdateUser("u1", bm.UserUpdate{Role: &role}); err != nil {
		t.Fatalf("promote user: %v", err)
	}

	w = ta.do(t, "POST", "/api/books", token, payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("as seller with the same token: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}
