package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/infrastructure/config"
)

// Mints an operator token signed with http.auth.secret and prints it as JSON.
func main() {
	var (
		subject string
		scope   string
		ttl     time.Duration
	)
	flag.StringVar(&subject, "subject", "", "Token subject, e.g. the operator or service name (required)")
	flag.StringVar(&scope, "scope", auth.ScopeRead, "Comma separated scopes (sync:read, sync:write, sync:admin)")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (default http.auth.token_ttl)")
	flag.Parse()

	if subject == "" {
		fmt.Fprintln(os.Stderr, "-subject is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("load configuration", err)
	}

	tokens := auth.NewTokenService(cfg.HTTP.Auth)
	if !tokens.Enabled() {
		fmt.Fprintln(os.Stderr, "http.auth.secret is not set, authentication is disabled")
		os.Exit(1)
	}

	scopes, err := auth.ParseScopes(scope)
	if err != nil {
		fail("parse scopes", err)
	}
	if ttl == 0 {
		ttl = tokens.DefaultTTL()
	}

	issued, err := tokens.Issue(subject, scopes, ttl)
	if err != nil {
		fail("issue token", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(issued); err != nil {
		fail("write token", err)
	}
}

func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "Failed to %s: %v\n", action, err)
	os.Exit(1)
}
