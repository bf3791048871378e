// Package bookmarket is the backend for a second-hand book marketplace.
//
// Accounts sign up with email and password and verify through a short
// one-time code, or arrive via Google OAuth; both paths end in the same
// user record and the same signed session token. Sellers list books,
// buyers browse them, and everyone can upload files and a profile
// picture with progress pushed over a websocket room per user.
//
// # Layout
//
// The root package holds the domain types, the store interfaces and the
// HTTP handlers. Implementations live below it:
//
//   - stores: in-process stores with optional JSON snapshots, for tests
//     and single-node development
//   - stores/gorm: the PostgreSQL stores used in production
//   - oauth2: the provider side of the Google login flow
//   - notify: the websocket hub
//   - cmd/server: the runnable server, configured from the environment
//
// # Basic Usage
//
//	users := stores.NewMemUserStore()
//	tokens := &bookmarket.TokenIssuer{SecretKey: secret}
//	auth := &bookmarket.Auth{
//	    Users:  users,
//	    Email:  &bookmarket.ConsoleEmailSender{},
//	    Tokens: tokens,
//	}
//	app := &bookmarket.App{
//	    Auth:    auth,
//	    Books:   &bookmarket.BooksAPI{Books: stores.NewMemBookStore()},
//	    Profile: &bookmarket.ProfileAPI{Users: users},
//	    MW:      &bookmarket.Middleware{Tokens: tokens, Users: users},
//	}
//	http.ListenAndServe(":5000", app.Router())
package bookmarket
