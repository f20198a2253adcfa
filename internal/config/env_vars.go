package config

import (
	"os"
	"strings"
	"time"
)

const (
	apiURLVar      = "PAT_API_URL"
	dataFolderVar  = "PAT_DATA_FOLDER"
	serviceNameVar = "PAT_SERVICE_NAME"
)

type EnvVars struct{}

var _ Config = EnvVars{}

func (EnvVars) GetAPIURL() string {
	return strings.TrimSuffix(GetEnv(apiURLVar, "http://localhost:3000"), "/")
}

func (EnvVars) GetRequestTimeout() time.Duration {
	return GetEnvDuration("PAT_REQUEST_TIMEOUT", 15*time.Second)
}

// GetSocketURL derives the websocket endpoint from the API URL. The live
// connection is served from the same host on the /ws path.
func (e EnvVars) GetSocketURL() string {
	url := e.GetAPIURL()
	url = strings.Replace(url, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	return url + "/ws"
}

func (EnvVars) GetHeartbeatInterval() time.Duration {
	return GetEnvDuration("PAT_HEARTBEAT_INTERVAL", 25*time.Second)
}

func (EnvVars) GetReconnectDelay() time.Duration {
	return GetEnvDuration("PAT_RECONNECT_DELAY", 5*time.Second)
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(dataFolderVar, "./data")
}

// GetServiceName returns the namespace under which secrets are persisted.
func (EnvVars) GetServiceName() string {
	return GetEnv(serviceNameVar, "dev.patapp.client")
}

// GetPassphrase protects the on-disk secret store. The default is only
// suitable for local development.
func (EnvVars) GetPassphrase() string {
	return GetEnv("PAT_PASSPHRASE", "pat-local-dev")
}

func (EnvVars) GetAppName() string {
	return GetEnv("PAT_APP_NAME", "Pat")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
