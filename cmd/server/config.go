package main

import (
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config carries every runtime setting. All of it comes from the
// environment, with a .env file loaded first if one exists.
type Config struct {
	Port        string
	DatabaseURL string

	// DataDir backs the snapshot stores when no database is
	// configured. Dev mode only.
	DataDir string

	JWTSecret string
	JWTIssuer string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFromName string
	SMTPFromAddr string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	FrontendURL string
	UploadDir   string

	LogLevel string
	LogDev   bool
}

func ConfigFromEnv() Config {
	cfg := Config{
		Port:               envOr("PORT", "5000"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DataDir:            envOr("DATA_DIR", "data"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          os.Getenv("JWT_ISSUER"),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPUsername:       os.Getenv("SMTP_USERNAME"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:       envOr("SMTP_FROM_NAME", "BookMarket"),
		SMTPFromAddr:       os.Getenv("SMTP_FROM_ADDR"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),
		FrontendURL:        envOr("FRONTEND_URL", "http://localhost:3000"),
		UploadDir:          envOr("UPLOAD_DIR", "uploads"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		LogDev:             os.Getenv("LOG_DEV") == "1",
	}
	if port, err := strconv.Atoi(envOr("SMTP_PORT", "587")); err == nil {
		cfg.SMTPPort = port
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// initLogger builds the process logger. Dev mode gets the console
// encoder, production gets single-line JSON on stdout.
func initLogger(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.LogLevel)
	if cfg.LogDev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
