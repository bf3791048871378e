package bookmarket

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenExpiry is how long an issued session token stays valid.
const SessionTokenExpiry = 7 * 24 * time.Hour

// TokenIssuer signs and verifies session tokens binding a user identity.
type TokenIssuer struct {
	SecretKey string
	Issuer    string

	// Defaults to SessionTokenExpiry.
	Expiry time.Duration
}

func (t *TokenIssuer) expiry() time.Duration {
	if t.Expiry != 0 {
		return t.Expiry
	}
	return SessionTokenExpiry
}

// IssueSession signs a token asserting the given user identity.
func (t *TokenIssuer) IssueSession(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(t.expiry()).Unix(),
	}
	if t.Issuer != "" {
		claims["iss"] = t.Issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifySession parses a session token and returns the user id it binds.
func (t *TokenIssuer) VerifySession(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.SecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("claims is not a map")
	}

	if t.Issuer != "" {
		if iss, _ := claims.GetIssuer(); iss != t.Issuer {
			return "", fmt.Errorf("invalid issuer")
		}
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}
