package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
	"github.com/dmitrijs2005/gatekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Interval fields
// use timex.Duration so both "90s" and integer nanoseconds are accepted.
// Only keys present in the file override the current values.
type JsonConfig struct {
	EndpointAddrHTTP        *string         `json:"endpoint_addr_http"`
	EndpointAddrHealth      *string         `json:"endpoint_addr_health"`
	DatabaseDSN             *string         `json:"database_dsn"`
	SecretKey               *string         `json:"secret_key"`
	SessionValidityDuration *timex.Duration `json:"session_validity_duration"`
	SweepInterval           *timex.Duration `json:"sweep_interval"`
	InviteValidityDuration  *timex.Duration `json:"invite_validity_duration"`
	RemoteBaseURL           *string         `json:"remote_base_url"`
	RemoteAPIKey            *string         `json:"remote_api_key"`
	RemoteTimeout           *timex.Duration `json:"remote_timeout"`
	RemoteRateLimit         *float64        `json:"remote_rate_limit"`
	BootstrapAdminUser      *string         `json:"bootstrap_admin_user"`
	BootstrapAdminPassword  *string         `json:"bootstrap_admin_password"`
	LogLevel                *string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config (or GATEKEEPER_CONFIG) into
// config. With no file configured it does nothing; an unreadable or invalid
// file panics, as a half-applied config is worse than none.
func parseJson(config *Config) {
	path := flagx.ConfigFile()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrHealth, c.EndpointAddrHealth)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.SessionValidityDuration, c.SessionValidityDuration)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setDuration(&config.InviteValidityDuration, c.InviteValidityDuration)
	setString(&config.RemoteBaseURL, c.RemoteBaseURL)
	setString(&config.RemoteAPIKey, c.RemoteAPIKey)
	setDuration(&config.RemoteTimeout, c.RemoteTimeout)
	if c.RemoteRateLimit != nil {
		config.RemoteRateLimit = *c.RemoteRateLimit
	}
	setString(&config.BootstrapAdminUser, c.BootstrapAdminUser)
	setString(&config.BootstrapAdminPassword, c.BootstrapAdminPassword)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
