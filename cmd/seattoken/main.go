// Command seattoken issues an occupant access token for the flight seat API.
//
//	seattoken -occupant alice [-ttl 60]
//
// The signing secret is read from JWT_SECRET (or .env), the same variable
// the server verifies tokens with.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/flight-seat-service/internal/config"
	"github.com/iliyamo/flight-seat-service/internal/utils"
)

func main() {
	occupant := flag.String("occupant", "", "occupant the token identifies")
	ttl := flag.Int("ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *ttl == 0 {
		*ttl = cfg.AccessTTLMin
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, *occupant, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seattoken: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
