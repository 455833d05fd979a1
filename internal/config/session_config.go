package config

import "time"

const (
	// DefaultAdminScope is the scp value that marks an admin access token.
	DefaultAdminScope = "admin-dashboard"
	// DefaultAuthChannel is the broadcast channel shared by every open panel.
	DefaultAuthChannel = "auth-channel"
)

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:8080/api/v1")
}

func (Session) GetAdminScope() string {
	return GetEnv("ADMIN_SCOPE", DefaultAdminScope)
}

func (Session) GetAuthChannel() string {
	return GetEnv("AUTH_CHANNEL", DefaultAuthChannel)
}

func (Session) GetLoginPath() string {
	return GetEnv("LOGIN_PATH", "/login")
}

func (Session) GetPublicPath() string {
	return GetEnv("PUBLIC_PATH", "/")
}

func (Session) GetDashboardPath() string {
	return GetEnv("DASHBOARD_PATH", "/admin/dashboard")
}

func (Session) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 10*time.Second)
}
