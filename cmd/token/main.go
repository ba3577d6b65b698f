package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/Dan9191/gigcredit/internal/config"
	"github.com/Dan9191/gigcredit/internal/middleware"
	"github.com/sirupsen/logrus"
)

// token mints a bearer token signed with the API's JWT_SECRET, reading the
// same environment and .env file as the server.
func main() {
	logger := logrus.New()

	subject := flag.String("subject", "", "subject the token is issued to")
	role := flag.String("role", "", "optional role, e.g. operator")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *subject == "" {
		logger.Fatal("-subject is required")
	}
	if *role != "" && *role != middleware.RoleOperator {
		logger.Fatalf("Unknown role %q", *role)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	tok, err := middleware.IssueToken(cfg.JWTSecret, *subject, *role, *ttl)
	if err != nil {
		logger.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(tok)
}
