package config

import "path/filepath"

type CacheKind string

const (
	CacheFile  CacheKind = "file"
	CacheRedis CacheKind = "redis"
)

type BackendConfig interface {
	GetBackendURL() string
	GetBackendAPIKey() string
	GetSessionFile() string
	GetCacheKind() CacheKind
	GetCacheFile() string
	GetRedisAddr() string
	GetRedisKey() string
}

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetBackendURL() string {
	return GetEnv("BACKEND_URL", "http://localhost:54321")
}

// GetBackendAPIKey returns the project's public (anon) key
func (Backend) GetBackendAPIKey() string {
	return GetEnv("BACKEND_ANON_KEY", "")
}

func (Backend) GetSessionFile() string {
	return GetEnv("SESSION_FILE", filepath.Join(EnvVars{}.GetDataFolder(), "session.json"))
}

func (Backend) GetCacheKind() CacheKind {
	if GetEnv("PROFILE_CACHE", string(CacheFile)) == string(CacheRedis) {
		return CacheRedis
	}
	return CacheFile
}

func (Backend) GetCacheFile() string {
	return GetEnv("PROFILE_CACHE_FILE", filepath.Join(EnvVars{}.GetDataFolder(), "profile.json"))
}

func (Backend) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Backend) GetRedisKey() string {
	return GetEnv("PROFILE_CACHE_KEY", "backoffice:profile")
}
