// Command token issues an access token for an owner id, signed with the
// server's secret key. It reads the same configuration as the server, so
// -s and -t (or DRIVESYNC_SECRET_KEY and friends) apply here too.
//
//	token -u alice
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/drivesync/internal/auth"
	"github.com/dmitrijs2005/drivesync/internal/flagx"
	"github.com/dmitrijs2005/drivesync/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	fs := flag.NewFlagSet("token", flag.ExitOnError)
	owner := fs.String("u", "", "owner id the token is issued for")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-u"}))

	if *owner == "" {
		log.Fatal("owner id is required (-u)")
	}

	token, err := auth.GenerateToken(*owner, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(token)
}
