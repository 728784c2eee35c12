// Command facilitator runs the upto scheme's facilitator service: verify,
// settle, supported, and stats endpoints backed by a single EVM signer and
// a SQLite audit store.
package main

import (
	"log"
	"os"

	"github.com/radiustechsystems/x402-upto/audit"
	"github.com/radiustechsystems/x402-upto/facilitator"
	"github.com/radiustechsystems/x402-upto/signer/evmsigner"
)

const (
	defaultPort    = "4402"
	defaultNetwork = "eip155:84532"
	defaultRPCURL  = "https://sepolia.base.org"
	defaultDBPath  = "facilitator.db"
)

func main() {
	privateKey := os.Getenv("FACILITATOR_PRIVATE_KEY")
	if privateKey == "" {
		log.Fatal("FACILITATOR_PRIVATE_KEY environment variable is required")
	}

	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		rpcURL = defaultRPCURL
	}

	network := os.Getenv("NETWORK")
	if network == "" {
		network = defaultNetwork
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	dbPath := os.Getenv("AUDIT_DB_PATH")
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	facilitatorSigner, err := evmsigner.New(privateKey, rpcURL)
	if err != nil {
		log.Fatalf("failed to create signer: %v", err)
	}

	store, err := audit.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open audit store: %v", err)
	}
	defer store.Close()

	log.Printf("facilitator address: %s", facilitatorSigner.Address())
	log.Printf("network: %s", network)
	log.Printf("rpc: %s", rpcURL)

	service := facilitator.New(facilitatorSigner, store, network, facilitatorSigner.Address())
	router := service.Router()

	log.Printf("facilitator listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
