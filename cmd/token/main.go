// Command token mints an access token for the operator routes, e.g.
//
//	JWT_SECRET=... go run ./cmd/token -sub ops-1 -role ADMIN -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-seat-inventory/internal/utils"
)

func main() {
	sub := flag.String("sub", "", "token subject, recorded as the audit actor")
	role := flag.String("role", "OWNER", "role claim: OWNER or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	if *sub == "" {
		fmt.Fprintln(os.Stderr, "-sub is required")
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *sub, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
