package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/skyhaul/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Durations use timex.Duration so both "15m" and integer nanoseconds parse.
// Pointer fields distinguish "absent" from an explicit zero/false.
type JsonConfig struct {
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string          `json:"database_dsn"`
	SecretKey                    string          `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	TxIsolation                  string          `json:"tx_isolation"`
	RetentionExpiredDays         *int            `json:"retention_expired_days"`
	RetentionDeactivatedDays     *int            `json:"retention_deactivated_days"`
	RetentionInterval            *timex.Duration `json:"retention_interval"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	SecureCookies                *bool           `json:"secure_cookies"`
	RedisAddr                    string          `json:"redis_addr"`
	RefreshRateLimit             *int            `json:"refresh_rate_limit"`
	RefreshRateWindow            *timex.Duration `json:"refresh_rate_window"`
	AMQPURL                      string          `json:"amqp_url"`
	SecurityEventsQueue          string          `json:"security_events_queue"`
	LogLevel                     string          `json:"log_level"`
	LogFormat                    string          `json:"log_format"`
}

// parseJson loads configuration values from the JSON file at path into the
// provided Config. An empty path means there is nothing to load. Only keys
// present in the file override the current values. A missing or malformed
// file panics.
func parseJson(config *Config, path string) {
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

	overlayString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlayString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlayString(&config.DatabaseDSN, c.DatabaseDSN)
	overlayString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	overlayString(&config.TxIsolation, c.TxIsolation)
	if c.RetentionExpiredDays != nil {
		config.RetentionExpiredDays = *c.RetentionExpiredDays
	}
	if c.RetentionDeactivatedDays != nil {
		config.RetentionDeactivatedDays = *c.RetentionDeactivatedDays
	}
	if c.RetentionInterval != nil {
		config.RetentionInterval = c.RetentionInterval.Duration
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	overlayString(&config.RedisAddr, c.RedisAddr)
	if c.RefreshRateLimit != nil {
		config.RefreshRateLimit = *c.RefreshRateLimit
	}
	if c.RefreshRateWindow != nil {
		config.RefreshRateWindow = c.RefreshRateWindow.Duration
	}
	overlayString(&config.AMQPURL, c.AMQPURL)
	overlayString(&config.SecurityEventsQueue, c.SecurityEventsQueue)
	overlayString(&config.LogLevel, c.LogLevel)
	overlayString(&config.LogFormat, c.LogFormat)
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
