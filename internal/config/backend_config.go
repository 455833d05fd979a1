package config

import "time"

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "dev-secret-change-me")
}

func (Backend) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
}

func (Backend) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour) // 7 days
}

func (Backend) GetAdminEmail() string {
	return GetEnv("ADMIN_EMAIL", "admin@termustat.ir")
}

func (Backend) GetAdminPassword() string {
	return GetEnv("ADMIN_PASSWORD", "Admin12345")
}
