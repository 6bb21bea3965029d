package config

import (
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	BackendConfig
	SessionConfig
	LoggingConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Backend
	Session
	Logging
}

func New() Config {
	return mainConfig{}
}

// Load reads a .env file when present and returns the env-backed config.
// Variables already set in the environment win over the file.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return New()
}
