// Command dev-token mints a bearer token for local development, signed with
// JWT_SECRET the same way the identity provider signs production tokens.
// With -checkout it mints a payment provider token signed with
// CHECKOUT_WEBHOOK_SECRET instead.
//
//	go run ./cmd/dev-token -sub alice -ttl 2h
//	go run ./cmd/dev-token -checkout
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"carteira/internal/cli"
	apphttp "carteira/internal/http"
)

func main() {
	sub := flag.String("sub", "", "user id placed in the subject claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	checkout := flag.Bool("checkout", false, "mint a checkout webhook token")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	secretVar, issuer := "JWT_SECRET", os.Getenv("JWT_ISSUER")
	if *checkout {
		secretVar, issuer = "CHECKOUT_WEBHOOK_SECRET", ""
		*sub = apphttp.CheckoutSubject
	}
	if *sub == "" {
		logger.Error("Missing -sub")
		os.Exit(2)
	}
	secret := os.Getenv(secretVar)
	if len(secret) < 32 {
		logger.Error(secretVar + " must be set and at least 32 bytes")
		os.Exit(1)
	}

	tok, err := apphttp.NewTokenVerifier(secret, issuer).Issue(*sub, *ttl)
	if err != nil {
		logger.Error("Failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
