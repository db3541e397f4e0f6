package config

import "time"

// Blob backends.
const (
	BlobS3     = "s3"
	BlobMinio  = "minio"
	BlobMemory = "memory"
)

// Config holds runtime settings for the drivesync client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the RecordStore gRPC endpoint.
//   - OnlineCheckInterval: how often the client checks that the server is reachable.
//   - AccessToken: token to sign in with at startup, if any.
//   - BlobBackend: "s3", "minio" or "memory"; the Blob* fields address it.
//   - AutosaveDelay: quiet period before an edited document is written.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	AccessToken         string
	BlobBackend         string
	BlobEndpoint        string
	BlobRegion          string
	BlobBucket          string
	BlobAccessKey       string
	BlobSecretKey       string
	BlobUseSSL          bool
	AutosaveDelay       time.Duration
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.AccessToken = ""
	c.BlobBackend = BlobMinio
	c.BlobEndpoint = "127.0.0.1:9000"
	c.BlobRegion = "us-east-1"
	c.BlobBucket = "drivesync"
	c.BlobAccessKey = "admin"
	c.BlobSecretKey = "secretpassword"
	c.BlobUseSSL = false
	c.AutosaveDelay = time.Second
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
