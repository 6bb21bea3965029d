package config

import "time"

type SessionConfig interface {
	GetProfileFetchTimeout() time.Duration
	GetHeartbeatInterval() time.Duration
	GetBootstrapBackstop() time.Duration
	GetLoginPath() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetProfileFetchTimeout() time.Duration {
	return GetEnvDuration("PROFILE_FETCH_TIMEOUT", 10*time.Second)
}

func (Session) GetHeartbeatInterval() time.Duration {
	return GetEnvDuration("HEARTBEAT_INTERVAL", 5*time.Minute)
}

// GetBootstrapBackstop is how long a guarded request waits for the session
// before the reload view is shown
func (Session) GetBootstrapBackstop() time.Duration {
	return GetEnvDuration("BOOTSTRAP_BACKSTOP", 15*time.Second)
}

func (Session) GetLoginPath() string {
	return GetEnv("LOGIN_PATH", "/login")
}
