// Command opstoken mints a short-lived operator JWT for POST /api/v1/payments/sweep.
//
//	AMS_JWT_SECRET=... opstoken -subject cron-sweeper -ttl 5m
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"amethyst-storefront/config"
	"amethyst-storefront/internal/service"
)

func main() {
	subject := flag.String("subject", "ops", "token subject recorded in logs")
	ttl := flag.Duration("ttl", 0, "token lifetime (default: jwt.expiry from config)")
	cfgPath := flag.String("config", os.Getenv("AMS_CONFIG_FILE"), "config file path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	expiry := cfg.JWT.Expiry
	if *ttl > 0 {
		expiry = *ttl
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, expiry, cfg.JWT.Issuer).Generate(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
}
