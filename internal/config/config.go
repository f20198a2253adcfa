package config

import "time"

type Config interface {
	APIConfig
	SocketConfig
	StorageConfig
	GetAppName() string
}

type APIConfig interface {
	GetAPIURL() string
	GetRequestTimeout() time.Duration
}

type SocketConfig interface {
	GetSocketURL() string
	GetHeartbeatInterval() time.Duration
	GetReconnectDelay() time.Duration
}

type StorageConfig interface {
	GetDataFolder() string
	GetServiceName() string
	GetPassphrase() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
