// Package main is a small operator utility that generates a fresh 256-bit
// master key for the envelope cipher and prints it hex-encoded, ready for the
// ENCRYPTION_KEY environment variable. Rotating the key requires re-encrypting
// stored credentials; there is no automatic rotation.
package main

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/docuforge/docuforge/internal/crypto"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		log.Fatalf("failed to generate key: %v", err)
	}

	fmt.Println("Generated encryption master key (hex):")
	fmt.Println()
	fmt.Printf("  %s\n", hex.EncodeToString(key))
	fmt.Println()
	fmt.Println("Export it before starting the server:")
	fmt.Printf("  export ENCRYPTION_KEY=%s\n", hex.EncodeToString(key))
}
