package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	bm "github.com/vallury/bookmarket"
	"github.com/vallury/bookmarket/notify"
	"github.com/vallury/bookmarket/oauth2"
	"github.com/vallury/bookmarket/stores"
	gormstore "github.com/vallury/bookmarket/stores/gorm"
)

func main() {
	// best-effort: no .env file is fine, real env still applies
	_ = godotenv.Load()

	cfg := ConfigFromEnv()

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	users, books, files, err := buildStores(cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	tokens := &bm.TokenIssuer{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	hub := notify.NewHub(tokens, logger.Named("notify"))

	auth := &bm.Auth{
		Users:       users,
		Email:       buildEmailSender(cfg, logger),
		Tokens:      tokens,
		Logger:      logger.Named("auth"),
		FrontendURL: cfg.FrontendURL,
	}

	app := &bm.App{
		Auth:  auth,
		Books: &bm.BooksAPI{Books: books, Logger: logger.Named("books")},
		Uploads: &bm.UploadsAPI{
			Users:  users,
			Files:  files,
			Blobs:  &bm.DiskBlobStore{Dir: cfg.UploadDir},
			Notify: hub,
			Logger: logger.Named("uploads"),
		},
		Profile:    &bm.ProfileAPI{Users: users, Notify: hub, Logger: logger.Named("profile")},
		MW:         &bm.Middleware{Tokens: tokens, Users: users},
		WS:         hub.HandleWS,
		UploadDir:  cfg.UploadDir,
		CORSOrigin: cfg.FrontendURL,
	}

	if cfg.GoogleClientID != "" {
		google := oauth2.NewGoogleOAuth(
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL,
			auth.HandleOAuthUser, logger.Named("oauth"))
		google.FailURL = cfg.FrontendURL + "/login?error=oauth_failed"
		app.OAuthLogin = google.HandleLogin
		app.OAuthCallback = google.HandleCallback
	} else {
		logger.Info("google oauth not configured, routes disabled")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: app.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
}

// buildStores connects to Postgres when DATABASE_URL is set, otherwise
// falls back to snapshot stores under DATA_DIR for local development.
func buildStores(cfg Config, logger *zap.Logger) (bm.UserStore, bm.BookStore, bm.FileStore, error) {
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using postgres stores")
		return gormstore.NewUserStore(db), gormstore.NewBookStore(db), gormstore.NewFileStore(db), nil
	}

	logger.Warn("DATABASE_URL not set, using snapshot stores", zap.String("dir", cfg.DataDir))
	users, err := stores.NewSnapshotUserStore(filepath.Join(cfg.DataDir, "users.json"))
	if err != nil {
		return nil, nil, nil, err
	}
	books, err := stores.NewSnapshotBookStore(filepath.Join(cfg.DataDir, "books.json"))
	if err != nil {
		return nil, nil, nil, err
	}
	books.Users = users
	files, err := stores.NewSnapshotFileStore(filepath.Join(cfg.DataDir, "files.json"))
	if err != nil {
		return nil, nil, nil, err
	}
	return users, books, files, nil
}

func buildEmailSender(cfg Config, logger *zap.Logger) bm.EmailSender {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails go to the log")
		return &bm.ConsoleEmailSender{Logger: logger.Named("email")}
	}
	fromAddr := cfg.SMTPFromAddr
	if fromAddr == "" {
		fromAddr = cfg.SMTPUsername
	}
	return &bm.SMTPEmailSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.SMTPFromName,
		FromAddr: fromAddr,
	}
}
