// Command devtoken mints HS256 bearer tokens for local development.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"genstudio/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	var (
		subject string
		ttl     time.Duration
		secret  string
	)
	flag.StringVar(&subject, "sub", "dev-user", "token subject (user id)")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	flag.StringVar(&secret, "secret", "", "signing secret (falls back to JWT_SECRET)")
	flag.Parse()

	token, err := mint(subject, secret, os.Getenv("JWT_SECRET"), ttl, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(subject, secret, envSecret string, ttl time.Duration, now time.Time) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		secret = strings.TrimSpace(envSecret)
	}
	if secret == "" {
		return "", fmt.Errorf("JWT secret is required via -secret or JWT_SECRET")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	return middleware.SignJWT(secret, middleware.TokenClaims{
		Sub:    subject,
		Iat:    now.Unix(),
		Exp:    now.Add(ttl).Unix(),
		Issuer: "devtoken",
	})
}
