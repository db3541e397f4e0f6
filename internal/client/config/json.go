package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/drivesync/internal/flagx"
	"github.com/dmitrijs2005/drivesync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent keys
// leave the corresponding Config field unchanged.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	AccessToken         string         `json:"access_token"`
	BlobBackend         string         `json:"blob_backend"`
	BlobEndpoint        string         `json:"blob_endpoint"`
	BlobRegion          string         `json:"blob_region"`
	BlobBucket          string         `json:"blob_bucket"`
	BlobAccessKey       string         `json:"blob_access_key"`
	BlobSecretKey       string         `json:"blob_secret_key"`
	BlobUseSSL          *bool          `json:"blob_use_ssl"`
	AutosaveDelay       timex.Duration `json:"autosave_delay"`
	LogLevel            string         `json:"log_level"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson overlays Config with values loaded from the file named by -c or
// -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:], "DRIVESYNC_CONFIG")
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.BlobBackend, jc.BlobBackend)
	setString(&cfg.BlobEndpoint, jc.BlobEndpoint)
	setString(&cfg.BlobRegion, jc.BlobRegion)
	setString(&cfg.BlobBucket, jc.BlobBucket)
	setString(&cfg.BlobAccessKey, jc.BlobAccessKey)
	setString(&cfg.BlobSecretKey, jc.BlobSecretKey)
	if jc.BlobUseSSL != nil {
		cfg.BlobUseSSL = *jc.BlobUseSSL
	}
	if jc.AutosaveDelay.Duration != 0 {
		cfg.AutosaveDelay = jc.AutosaveDelay.Duration
	}
	setString(&cfg.LogLevel, jc.LogLevel)
}
