package bookmarket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// EnsureOAuthUser resolves a provider callback to a local account:
// a linked provider id logs straight in; an email match without a
// linkage gets the provider id merged onto the existing row; otherwise
// a fresh passwordless account is created.
func (a *Auth) EnsureOAuthUser(googleID, email, name string) (*User, error) {
	if googleID == "" || email == "" {
		return nil, fmt.Errorf("provider returned no id or email")
	}

	user, err := a.Users.GetUserByGoogleID(googleID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	existing, err := a.Users.GetUserByEmail(email)
	if err == nil {
		return a.Users.UpdateUser(existing.ID, UserUpdate{GoogleID: &googleID})
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user = &User{
		ID:       uuid.NewString(),
		Name:     name,
		Email:    email,
		GoogleID: &googleID,
		Role:     RoleBuyer,
	}
	if err := a.Users.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// HandleOAuthUser is the callback invoked by the oauth2 package after a
// successful provider exchange. This path is a provider-initiated
// browser redirect, so both success and failure hand control back via
// redirects rather than JSON.
func (a *Auth) HandleOAuthUser(authtype, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	googleID, _ := userInfo["id"].(string)
	email, _ := userInfo["email"].(string)
	name, _ := userInfo["name"].(string)

	user, err := a.EnsureOAuthUser(googleID, email, name)
	if err != nil {
		a.logger().Error("oauth callback failed",
			zap.String("provider", provider), zap.Error(err))
		a.redirectOAuthError(w, r)
		return
	}

	session, err := a.Tokens.IssueSession(user.ID)
	if err != nil {
		a.logger().Error("oauth callback: token signing failed", zap.Error(err))
		a.redirectOAuthError(w, r)
		return
	}

	sendInBackground(a.logger(), "welcome", func() error {
		return a.Email.SendWelcomeEmail(user.Email, user.Name)
	})

	publicJSON, err := json.Marshal(user.Public())
	if err != nil {
		a.logger().Error("oauth callback: marshal failed", zap.Error(err))
		a.redirectOAuthError(w, r)
		return
	}

	dest := fmt.Sprintf("%s/auth/callback?token=%s&user=%s",
		a.FrontendURL, url.QueryEscape(session), url.QueryEscape(string(publicJSON)))
	http.Redirect(w, r, dest, http.StatusFound)
}

func (a *Auth) redirectOAuthError(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, a.FrontendURL+"/login?error=oauth_failed", http.StatusFound)
}
