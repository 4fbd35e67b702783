// Command issue-token mints a session token for a user id so that CLI and
// HTTP calls are routed to the remote store. It is used to bootstrap users
// before an identity provider is in place.
//
// Usage:
//
//	issue-token --user=6f1c2a9e-0d4b-4a53-9a57-1c0b7f3e2d10 [--ttl=720h]
//
// Requires AUTH_JWT_SECRET (or a config file) to be set.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mpblatz/repeet/internal/auth"
	"github.com/mpblatz/repeet/internal/config"
	"github.com/mpblatz/repeet/internal/domain"
)

func main() {
	user := flag.String("user", "", "user id to issue the token for (random when empty)")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to auth.access_token_ttl)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if len(cfg.Auth.JWTSecret) < 32 {
		log.Fatal("auth.jwt_secret must be set to at least 32 characters")
	}

	userID := uuid.New()
	if *user != "" {
		userID, err = uuid.Parse(*user)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --user: %v\n", err)
			os.Exit(1)
		}
	}
	if userID == uuid.Nil || userID == domain.LocalUserID {
		fmt.Fprintln(os.Stderr, "the nil and local user ids are reserved")
		os.Exit(1)
	}

	lifetime := cfg.Auth.AccessTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, lifetime).GenerateAccessToken(userID)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "user %s, expires %s\n", userID, time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
