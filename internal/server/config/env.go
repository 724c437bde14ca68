package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// parseEnv overlays Config with SKYHAUL_* environment variables. Invalid
// numeric, boolean or duration values panic, mirroring how a malformed JSON
// file is treated.
func parseEnv(config *Config) {
	setString(&config.EndpointAddrHTTP, "SKYHAUL_HTTP_ADDR")
	setString(&config.EndpointAddrGRPC, "SKYHAUL_GRPC_ADDR")
	setString(&config.DatabaseDSN, "SKYHAUL_DATABASE_DSN")
	setString(&config.SecretKey, "SKYHAUL_SECRET_KEY")
	setDuration(&config.AccessTokenValidityDuration, "SKYHAUL_ACCESS_TTL")
	setDuration(&config.RefreshTokenValidityDuration, "SKYHAUL_REFRESH_TTL")
	setString(&config.TxIsolation, "SKYHAUL_TX_ISOLATION")
	setInt(&config.RetentionExpiredDays, "SKYHAUL_RETENTION_EXPIRED_DAYS")
	setInt(&config.RetentionDeactivatedDays, "SKYHAUL_RETENTION_DEACTIVATED_DAYS")
	setDuration(&config.RetentionInterval, "SKYHAUL_RETENTION_INTERVAL")
	setInt(&config.BcryptCost, "SKYHAUL_BCRYPT_COST")
	setBool(&config.SecureCookies, "SKYHAUL_SECURE_COOKIES")
	setString(&config.RedisAddr, "SKYHAUL_REDIS_ADDR")
	setInt(&config.RefreshRateLimit, "SKYHAUL_REFRESH_RATE_LIMIT")
	setDuration(&config.RefreshRateWindow, "SKYHAUL_REFRESH_RATE_WINDOW")
	setString(&config.AMQPURL, "SKYHAUL_AMQP_URL")
	setString(&config.SecurityEventsQueue, "SKYHAUL_SECURITY_EVENTS_QUEUE")
	setString(&config.LogLevel, "SKYHAUL_LOG_LEVEL")
	setString(&config.LogFormat, "SKYHAUL_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("invalid int for %s: %q", key, v))
	}
	*dst = n
}

func setBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Errorf("invalid bool for %s: %q", key, v))
	}
	*dst = b
}

func setDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("invalid duration for %s: %q", key, v))
	}
	*dst = d
}
