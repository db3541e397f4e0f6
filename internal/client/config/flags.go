package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/drivesync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags. See
// the package documentation for the list. Only those flags are parsed.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-k", "-m", "-e", "-g", "-b", "-u", "-p", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.AccessToken, "k", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.BlobBackend, "m", cfg.BlobBackend, "blob backend (s3|minio|memory)")
	fs.StringVar(&cfg.BlobEndpoint, "e", cfg.BlobEndpoint, "blob endpoint")
	fs.StringVar(&cfg.BlobRegion, "g", cfg.BlobRegion, "blob region")
	fs.StringVar(&cfg.BlobBucket, "b", cfg.BlobBucket, "blob bucket")
	fs.StringVar(&cfg.BlobAccessKey, "u", cfg.BlobAccessKey, "blob access key")
	fs.StringVar(&cfg.BlobSecretKey, "p", cfg.BlobSecretKey, "blob secret key")
	autosaveDelay := fs.Int("d", int(cfg.AutosaveDelay.Milliseconds()), "autosave delay (in milliseconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.AutosaveDelay = time.Duration(*autosaveDelay) * time.Millisecond
}
