// Copyright 2025 ICN Federation
//
// Command icn-keygen generates a fresh Ed25519 DID keypair and writes the
// private key to disk, replacing the teacher's bls-zk-setup CLI (which
// generated BLS verification keys for a contract this spec has no
// equivalent of).
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/icn-federation/icn-core/pkg/identity"
)

func main() {
	out := flag.String("out", "", "path to write the raw private key (base64), defaults to stdout")
	flag.Parse()

	kp, err := identity.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "icn-keygen: %v\n", err)
		os.Exit(1)
	}

	encoded := base64.StdEncoding.EncodeToString(kp.PrivateKey)

	if *out == "" {
		fmt.Printf("did: %s\nprivate_key: %s\n", kp.DID, encoded)
		return
	}
	if err := os.WriteFile(*out, []byte(encoded+"\n"), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "icn-keygen: write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("did: %s\nprivate_key written to: %s\n", kp.DID, *out)
}
