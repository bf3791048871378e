// Package oauth2 implements the provider side of OAuth login. It owns
// the redirect and callback endpoints; what happens to the fetched user
// info is the caller's HandleUserFunc.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo?access_token="

type GoogleOAuth struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string

	// FailURL receives the browser when state validation or the code
	// exchange fails.
	FailURL string

	HandleUser HandleUserFunc
	Logger     *zap.Logger

	oauthConfig oauth2.Config
}

func NewGoogleOAuth(clientID, clientSecret, callbackURL string, handleUser HandleUserFunc, logger *zap.Logger) *GoogleOAuth {
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("GOOGLE_CALLBACK_URL")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GoogleOAuth{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CallbackURL:  callbackURL,
		FailURL:      "/login?error=oauth_failed",
		HandleUser:   handleUser,
		Logger:       logger,
		oauthConfig: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// HandleLogin sends the browser to Google's consent page with a fresh
// state cookie.
func (g *GoogleOAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	OauthRedirector(&g.oauthConfig)(w, r)
}

// HandleCallback validates the state cookie, exchanges the code and
// hands the fetched profile to HandleUser.
func (g *GoogleOAuth) HandleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie("oauthstate")
	if oauthState == nil {
		g.Logger.Warn("oauth callback without state cookie")
		g.fail(w, r)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		http.SetCookie(w, &http.Cookie{Name: "oauthstate", MaxAge: 0})
		g.Logger.Warn("oauth state mismatch",
			zap.String("form", r.FormValue("state")))
		g.fail(w, r)
		return
	}

	token, err := g.oauthConfig.Exchange(context.Background(), r.FormValue("code"))
	if err != nil {
		g.Logger.Warn("oauth code exchange failed", zap.Error(err))
		g.fail(w, r)
		return
	}

	userInfo, err := g.fetchUserInfo(token)
	if err != nil {
		g.Logger.Warn("oauth user info fetch failed", zap.Error(err))
		g.fail(w, r)
		return
	}

	g.HandleUser("oauth", "google", token, userInfo, w, r)
}

func (g *GoogleOAuth) fail(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, g.FailURL, http.StatusTemporaryRedirect)
}

func (g *GoogleOAuth) fetchUserInfo(token *oauth2.Token) (map[string]any, error) {
	response, err := http.Get(googleUserInfoURL + token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading user info: %w", err)
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed decoding user info: %w", err)
	}
	return userInfo, nil
}
