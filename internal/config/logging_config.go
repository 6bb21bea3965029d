package config

import "path/filepath"

type LoggingConfig interface {
	GetLogLevel() string
	GetLogFile() string
	GetLogMaxSizeMB() int
	GetLogMaxBackups() int
}

type Logging struct{}

var _ LoggingConfig = Logging{}

func (Logging) GetLogLevel() string {
	return GetEnv("LOG_LEVEL", "info")
}

// GetLogFile returns "" when file logging is disabled with LOG_FILE=off
func (Logging) GetLogFile() string {
	file := GetEnv("LOG_FILE", filepath.Join(EnvVars{}.GetDataFolder(), "backoffice.log"))
	if file == "off" {
		return ""
	}
	return file
}

func (Logging) GetLogMaxSizeMB() int {
	return GetEnvInt("LOG_MAX_SIZE_MB", 10)
}

func (Logging) GetLogMaxBackups() int {
	return GetEnvInt("LOG_MAX_BACKUPS", 3)
}
