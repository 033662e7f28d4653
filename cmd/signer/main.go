// cmd/signer/main.go
//
// Development helper for the off-chain signer role: generates keypairs and
// signs mint/renew payloads so they can be submitted to the API.
//
// Usage:
//
//	signer keygen
//	signer sign-mint -key <privhex> -username alice -address 0x... -expiry 1735689600 -chain 1 -nonce 0 -years 2
//	signer sign-renew -key <privhex> -username alice -address 0x... -expiry 1735689600 -chain 1 -nonce 1
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"identity-registry/pkg/signature"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "keygen":
		runKeygen()
	case "sign-mint":
		runSignMint(os.Args[2:])
	case "sign-renew":
		runSignRenew(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: signer <keygen|sign-mint|sign-renew> [flags]")
}

func runKeygen() {
	pub, priv, err := signature.GenerateKeyPair()
	if err != nil {
		fatalf("generate keypair: %v", err)
	}
	fmt.Printf("public key:  %s\n", pub)
	fmt.Printf("private key: %s\n", priv)
}

type commonFlags struct {
	key      string
	username string
	address  string
	expiry   int64
	chainID  uint64
	nonce    uint64
	free     bool
}

func registerCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVar(&f.key, "key", "", "hex ed25519 private key")
	fs.StringVar(&f.username, "username", "", "username to authorize")
	fs.StringVar(&f.address, "address", "", "recipient address (0x...)")
	fs.Int64Var(&f.expiry, "expiry", 0, "authorization deadline (unix seconds)")
	fs.Uint64Var(&f.chainID, "chain", 1, "chain id the signature is bound to")
	fs.Uint64Var(&f.nonce, "nonce", 0, "next nonce for the address (GET /nonces/:address)")
	fs.BoolVar(&f.free, "free", false, "waive the fee")
}

func (f *commonFlags) validate() {
	if f.key == "" || f.username == "" || f.address == "" || f.expiry == 0 {
		fatalf("-key, -username, -address and -expiry are required")
	}
}

func runSignMint(args []string) {
	fs := flag.NewFlagSet("sign-mint", flag.ExitOnError)
	var f commonFlags
	var years uint64
	registerCommonFlags(fs, &f)
	fs.Uint64Var(&years, "years", 1, "registration years")
	fs.Parse(args)
	f.validate()

	digest := signature.HashMint(signature.MintAuthorization{
		Username: f.username,
		Address:  f.address,
		Expiry:   f.expiry,
		ChainID:  f.chainID,
		Nonce:    f.nonce,
		Free:     f.free,
		Years:    years,
	})
	printSignature(f.key, digest)
}

func runSignRenew(args []string) {
	fs := flag.NewFlagSet("sign-renew", flag.ExitOnError)
	var f commonFlags
	registerCommonFlags(fs, &f)
	fs.Parse(args)
	f.validate()

	digest := signature.HashRenew(signature.RenewAuthorization{
		Username: f.username,
		Address:  f.address,
		Expiry:   f.expiry,
		ChainID:  f.chainID,
		Nonce:    f.nonce,
		Free:     f.free,
	})
	printSignature(f.key, digest)
}

func printSignature(privateKeyHex string, digest []byte) {
	sig, err := signature.Sign(privateKeyHex, digest)
	if err != nil {
		fatalf("sign: %v", err)
	}
	fmt.Printf("digest:    %s\n", hex.EncodeToString(digest))
	fmt.Printf("signature: %s\n", sig)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
