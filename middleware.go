package bookmarket

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const contextKeyUserID contextKey = "user_id"

// GetUserIDFromContext retrieves the authenticated user id set by
// Middleware.RequireUser.
func GetUserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(contextKeyUserID); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}

// SetUserIDInContext stores an authenticated user id in the context.
func SetUserIDInContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// Middleware authenticates requests from a Bearer header or a cookie
// and gates handlers on roles.
type Middleware struct {
	Tokens *TokenIssuer
	Users  UserStore

	// CookieName is the fallback cookie checked when no Authorization
	// header is present. Defaults to "token".
	CookieName string
}

func (m *Middleware) cookieName() string {
	if m.CookieName != "" {
		return m.CookieName
	}
	return "token"
}

// tokenFromRequest extracts the session token, preferring the
// Authorization header over the cookie.
func (m *Middleware) tokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return strings.TrimSpace(authHeader)
	}
	if cookie, err := r.Cookie(m.cookieName()); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireUser rejects unauthenticated requests and puts the verified
// user id in the request context. The account is re-fetched so a token
// for a deleted user does not pass.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.tokenFromRequest(r)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}

		userID, err := m.Tokens.VerifySession(token)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		if _, err := m.Users.GetUserByID(userID); err != nil {
			writeMessage(w, http.StatusUnauthorized, "Token is not valid")
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserIDInContext(r.Context(), userID)))
	})
}

// RequireRole layers a role check on top of RequireUser. The record is
// fetched fresh on every request; a role cached in the token or an
// earlier middleware is never trusted.
func (m *Middleware) RequireRole(allowed ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserIDFromContext(r.Context())
			if userID == "" {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			user, err := m.Users.GetUserByID(userID)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "User not found")
				return
			}

			role := user.Role
			if role == "" {
				role = RoleBuyer
			}
			for _, a := range allowed {
				if role == a {
					next.ServeHTTP(w, r)
					return
				}
			}

			names := make([]string, len(allowed))
			for i, a := range allowed {
				names[i] = string(a)
			}
			writeMessage(w, http.StatusForbidden,
				"Access denied. Required role: "+strings.Join(names, " or ")+". Your role: "+string(role))
		})
	}
}
