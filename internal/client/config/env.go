package config

import "github.com/dmitrijs2005/drivesync/internal/flagx"

func parseEnv(cfg *Config) {
	flagx.EnvString("DRIVESYNC_SERVER_ADDR", &cfg.ServerEndpointAddr)
	flagx.EnvDuration("DRIVESYNC_ONLINE_CHECK_INTERVAL", &cfg.OnlineCheckInterval)
	flagx.EnvString("DRIVESYNC_ACCESS_TOKEN", &cfg.AccessToken)
	flagx.EnvString("DRIVESYNC_BLOB_BACKEND", &cfg.BlobBackend)
	flagx.EnvString("DRIVESYNC_BLOB_ENDPOINT", &cfg.BlobEndpoint)
	flagx.EnvString("DRIVESYNC_BLOB_REGION", &cfg.BlobRegion)
	flagx.EnvString("DRIVESYNC_BLOB_BUCKET", &cfg.BlobBucket)
	flagx.EnvString("DRIVESYNC_BLOB_ACCESS_KEY", &cfg.BlobAccessKey)
	flagx.EnvString("DRIVESYNC_BLOB_SECRET_KEY", &cfg.BlobSecretKey)
	flagx.EnvBool("DRIVESYNC_BLOB_USE_SSL", &cfg.BlobUseSSL)
	flagx.EnvDuration("DRIVESYNC_AUTOSAVE_DELAY", &cfg.AutosaveDelay)
	flagx.EnvString("DRIVESYNC_LOG_LEVEL", &cfg.LogLevel)
}
