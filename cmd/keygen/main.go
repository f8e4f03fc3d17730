package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/readiness-api-go/pkg/auth"
	"github.com/arnavshah/readiness-api-go/pkg/config"
)

func main() {
	config.LoadEnv()

	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <serviceID>")
		os.Exit(1)
	}

	serviceID := os.Args[1]
	secret := os.Getenv("API_MASTER_SECRET")
	if secret == "" {
		fmt.Println("Error: API_MASTER_SECRET not found in .env")
		os.Exit(1)
	}

	key := auth.GenerateHMACKey([]byte(secret), serviceID)
	fmt.Printf("Generated service key for %s:\n%s\n", serviceID, key)
}
