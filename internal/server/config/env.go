package config

import "github.com/dmitrijs2005/drivesync/internal/flagx"

// parseEnv overlays DRIVESYNC_* environment variables.
func parseEnv(config *Config) {
	flagx.EnvString("DRIVESYNC_GRPC_ADDR", &config.EndpointAddrGRPC)
	flagx.EnvString("DRIVESYNC_HTTP_ADDR", &config.EndpointAddrHTTP)
	flagx.EnvString("DRIVESYNC_STORE", &config.Store)
	flagx.EnvString("DRIVESYNC_NOTIFIER", &config.Notifier)
	flagx.EnvString("DRIVESYNC_DATABASE_DSN", &config.DatabaseDSN)
	flagx.EnvString("DRIVESYNC_SECRET_KEY", &config.SecretKey)
	flagx.EnvDuration("DRIVESYNC_TOKEN_VALIDITY", &config.AccessTokenValidityDuration)
	flagx.EnvString("DRIVESYNC_REDIS_ADDR", &config.RedisAddr)
	flagx.EnvString("DRIVESYNC_REDIS_PASSWORD", &config.RedisPassword)
	flagx.EnvInt("DRIVESYNC_REDIS_DB", &config.RedisDB)
	flagx.EnvString("DRIVESYNC_OTLP_ENDPOINT", &config.OTLPEndpoint)
	flagx.EnvString("DRIVESYNC_LOG_FORMAT", &config.LogFormat)
	flagx.EnvString("DRIVESYNC_LOG_LEVEL", &config.LogLevel)
}
