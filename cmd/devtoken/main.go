// Command devtoken prints a locally signed bearer token for development.
//
//	JWT_SECRET=... go run ./cmd/devtoken -sub ada -email ada@example.com
//
// The server accepts it when started with the same JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/drink-journal/internal/auth"
)

func main() {
	sub := flag.String("sub", "dev-user", "subject (the identity provider's user id)")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "display name claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	envFile := flag.String("env-file", ".env", "dotenv file to read JWT_SECRET from (empty to skip)")
	flag.Parse()

	if *envFile != "" {
		// A missing file is fine; the variable may come from the shell.
		_ = godotenv.Load(*envFile)
	}

	tokens, err := auth.NewTokenService(os.Getenv("JWT_SECRET"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}

	tok, err := tokens.GenerateWithDuration(auth.Identity{
		Subject: *sub,
		Email:   *email,
		Name:    *name,
	}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
