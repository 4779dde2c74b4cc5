// devtoken prints a bearer token for calling the read API of a local indexer
// with security.jwt enabled. Needs security.jwt.private_key_path.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"dexanalytics/internal/config"
	"dexanalytics/internal/security"
)

func main() {
	var (
		sub = flag.String("sub", "dev", "token subject")
		ttl = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	cfgPath := os.Getenv("CONFIG")
	if cfgPath == "" {
		cfgPath = "cmd/indexer/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed load config, error=%v", err)
	}

	signer, err := security.NewRS256Signer(&cfg.Security.JWT)
	if err != nil {
		log.Fatalf("Failed to initialize signer: %v", err)
	}

	token, err := signer.Mint(*sub, *ttl)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}
	fmt.Println(token)
}
