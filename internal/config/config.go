package config

import (
	"time"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	SessionConfig
	BroadcastConfig
	BackendConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetLogLevel() string
	GetEnv() string
}

// SessionConfig describes how the admin panel talks to the auth API and where it navigates.
type SessionConfig interface {
	GetAPIBaseURL() string
	GetAdminScope() string
	GetAuthChannel() string
	GetLoginPath() string
	GetPublicPath() string
	GetDashboardPath() string
	GetRequestTimeout() time.Duration
}

// BroadcastConfig selects the cross-tab channel transport. An empty address means in-process.
type BroadcastConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

// BackendConfig configures the development auth backend in cmd/server.
type BackendConfig interface {
	GetJWTSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetAdminEmail() string
	GetAdminPassword() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Session
	Broadcast
	Backend
	Cors
}

// New loads an optional .env file and returns the environment backed configuration.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
