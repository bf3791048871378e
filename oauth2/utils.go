package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// HandleUserFunc receives the authenticated provider profile at the end
// of a successful OAuth flow and owns the rest of the response.
type HandleUserFunc func(authtype string, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request)

func generateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:    "oauthstate",
		Value:   state,
		Path:    "/",
		Expires: time.Now().Add(time.Hour),
	})
	return state
}

// OauthRedirector builds the handler that kicks off the provider flow.
// A callbackURL query parameter is remembered in a short-lived cookie so
// the app can return the browser to where it started.
func OauthRedirector(oauthConfig *oauth2.Config) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if callbackURL := r.URL.Query().Get("callbackURL"); callbackURL != "" {
			http.SetCookie(w, &http.Cookie{
				Name:   "oauthCallbackURL",
				Value:  callbackURL,
				Path:   "/",
				MaxAge: 120,
			})
		}
		oauthState := generateStateOauthCookie(w)
		http.Redirect(w, r, oauthConfig.AuthCodeURL(oauthState), http.StatusFound)
	}
}
