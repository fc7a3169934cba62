// keytool encrypts a treasury signing key for at-rest storage. It runs
// offline: nothing here touches the network.
package main

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	flag "github.com/spf13/pflag"

	"github.com/cookingcrypto/backend/keyvault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	keyFlag := flag.String("key", "", "base58-encoded private key (or set KEYTOOL_PRIVATE_KEY env var)")
	generateFlag := flag.Bool("generate", false, "generate a fresh keypair instead of encrypting an existing one")
	passwordFlag := flag.String("password", "", "encryption passphrase (or set PRIVATE_KEY_PASSWORD env var)")
	outFlag := flag.String("out", "treasury.enc.json", "output path for the encrypted key blob")
	decryptFlag := flag.Bool("decrypt", false, "decrypt the blob at -out and print the public key, to verify a passphrase")
	flag.Parse()

	password := *passwordFlag
	if password == "" {
		password = os.Getenv("PRIVATE_KEY_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("a passphrase is required (-password or PRIVATE_KEY_PASSWORD)")
	}

	if *decryptFlag {
		key, err := keyvault.LoadFile(*outFlag, password)
		if err != nil {
			return err
		}
		fmt.Printf("decrypted OK, public key: %s\n", key.PublicKey())
		return nil
	}

	var key solana.PrivateKey
	switch {
	case *generateFlag:
		key = solana.NewWallet().PrivateKey
		fmt.Printf("generated keypair, public key: %s\n", key.PublicKey())
	default:
		encoded := *keyFlag
		if encoded == "" {
			encoded = os.Getenv("KEYTOOL_PRIVATE_KEY")
		}
		if encoded == "" {
			return fmt.Errorf("a private key is required (-key, KEYTOOL_PRIVATE_KEY, or -generate)")
		}
		var err error
		key, err = solana.PrivateKeyFromBase58(encoded)
		if err != nil {
			return fmt.Errorf("parse private key: %w", err)
		}
	}

	blob, err := keyvault.Encrypt(key, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outFlag, blob, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *outFlag, err)
	}

	fmt.Printf("encrypted key written to %s (public key: %s)\n", *outFlag, key.PublicKey())
	return nil
}
