package bookmarket

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// App bundles the handler groups and mounts them on one router.
type App struct {
	Auth    *Auth
	Books   *BooksAPI
	Uploads *UploadsAPI
	Profile *ProfileAPI
	MW      *Middleware

	// OAuthLogin and OAuthCallback are nil when no provider is
	// configured; the routes are simply not mounted.
	OAuthLogin    http.HandlerFunc
	OAuthCallback http.HandlerFunc

	// WS upgrades websocket connections, nil disables the endpoint.
	WS http.HandlerFunc

	// UploadDir, when set, is served under /uploads/.
	UploadDir string

	// CORSOrigin is the browser origin allowed to call the API with
	// credentials, typically the frontend URL. Empty disables CORS
	// headers entirely.
	CORSOrigin string
}

// Router wires every endpoint. Listing reads are public, everything
// that writes goes through RequireUser and, for seller surfaces,
// RequireRole.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/signup", a.Auth.HandleSignup).Methods("POST")
	auth.HandleFunc("/verify-signup-otp", a.Auth.HandleVerifySignupOTP).Methods("POST")
	auth.HandleFunc("/login", a.Auth.HandleLogin).Methods("POST")
	auth.HandleFunc("/logout", a.Auth.HandleLogout).Methods("POST")
	auth.HandleFunc("/forgot-password", a.Auth.HandleForgotPassword).Methods("POST")
	auth.HandleFunc("/verify-otp", a.Auth.HandleVerifyOTP).Methods("POST")
	auth.HandleFunc("/reset-password-otp", a.Auth.HandleResetPasswordWithOTP).Methods("POST")
	auth.HandleFunc("/reset-password", a.Auth.HandleLegacyResetPassword).Methods("POST")
	if a.OAuthLogin != nil {
		auth.HandleFunc("/google", a.OAuthLogin).Methods("GET")
		auth.HandleFunc("/google/callback", a.OAuthCallback).Methods("GET")
	}

	profile := r.PathPrefix("/api/user").Subrouter()
	profile.Use(a.MW.RequireUser)
	profile.HandleFunc("/profile", a.Profile.HandleGetProfile).Methods("GET")
	profile.HandleFunc("/profile", a.Profile.HandleUpdateProfile).Methods("PUT")

	books := r.PathPrefix("/api/books").Subrouter()
	books.HandleFunc("", a.Books.HandleListBooks).Methods("GET")
	books.HandleFunc("/{id}", a.Books.HandleGetBook).Methods("GET")

	selling := r.PathPrefix("/api/books").Subrouter()
	selling.Use(a.MW.RequireUser, a.MW.RequireRole(RoleSeller, RoleAdmin))
	selling.HandleFunc("", a.Books.HandleCreateBook).Methods("POST")
	selling.HandleFunc("/seller/my-books", a.Books.HandleMyBooks).Methods("GET")
	selling.HandleFunc("/{id}", a.Books.HandleUpdateBook).Methods("PUT")
	selling.HandleFunc("/{id}", a.Books.HandleDeleteBook).Methods("DELETE")

	if a.Uploads != nil {
		uploads := r.PathPrefix("/api/upload").Subrouter()
		uploads.Use(a.MW.RequireUser)
		uploads.HandleFunc("/upload", a.Uploads.HandleUpload).Methods("POST")
		uploads.HandleFunc("/files", a.Uploads.HandleListFiles).Methods("GET")

		picture := r.PathPrefix("/api/profile-picture").Subrouter()
		picture.Use(a.MW.RequireUser)
		picture.HandleFunc("/upload", a.Uploads.HandleProfilePictureUpload).Methods("POST")
	}

	if a.WS != nil {
		r.HandleFunc("/api/ws", a.WS).Methods("GET")
	}

	r.HandleFunc("/api/health", handleHealth).Methods("GET")

	if a.UploadDir != "" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(a.UploadDir))))
	}

	return r
}

// Handler wraps the router with CORS when CORSOrigin is set. Preflight
// requests are answered by the wrapper, so OPTIONS never reaches the
// routes.
func (a *App) Handler() http.Handler {
	r := a.Router()
	if a.CORSOrigin == "" {
		return r
	}
	return handlers.CORS(
		handlers.AllowedOrigins([]string{a.CORSOrigin}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
