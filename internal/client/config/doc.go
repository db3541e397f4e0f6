// Package config loads runtime configuration for the drivesync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. DRIVESYNC_* environment variables (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the RecordStore gRPC endpoint
//	-i int      online status check interval (seconds)
//	-k string   access token
//	-m string   blob backend: s3 | minio | memory
//	-e string   blob endpoint (URL for s3, host:port for minio)
//	-g string   blob region
//	-b string   blob bucket
//	-u string   blob access key
//	-p string   blob secret key
//	-d int      autosave delay (milliseconds)
//
// # JSON schema
//
// Durations are strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "blob_backend": "minio",
//	  "blob_endpoint": "127.0.0.1:9000",
//	  "blob_bucket": "drivesync",
//	  "autosave_delay": "1s"
//	}
package config
