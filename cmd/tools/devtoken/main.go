package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/noah-isme/crm-quotes/internal/auth"
	"github.com/noah-isme/crm-quotes/internal/config"
)

// devtoken prints a bearer token for local testing of the authenticated quote routes.
func main() {
	subject := flag.String("sub", "dev-user", "token subject (sales user id)")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}
	token, err := verifier.Issue(*subject, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
