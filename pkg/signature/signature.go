package signature

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// authorizationDomainTag is mixed into every authorization digest so hashes
// computed here can never collide with identifiers from other hash spaces.
// Bump the version suffix if the encoding ever changes.
const authorizationDomainTag = "identity-registry/authorization/v1:"

// MintAuthorization is the tuple signed off-chain to authorize a mint.
// Field order in the encoding is fixed: username, address, expiry, chain id,
// nonce, free flag, years. The off-chain signer must reproduce it bit-exact.
type MintAuthorization struct {
	Username string
	Address  string // canonical lowercase 0x-hex form
	Expiry   int64  // unix seconds; request deadline
	ChainID  uint64
	Nonce    uint64
	Free     bool
	Years    uint64
}

// RenewAuthorization is the tuple signed off-chain to authorize a renewal.
// Same encoding as MintAuthorization minus the trailing years field.
type RenewAuthorization struct {
	Username string
	Address  string
	Expiry   int64
	ChainID  uint64
	Nonce    uint64
	Free     bool
}

// HashMint returns the sha3-256 digest of the deterministic encoding of a.
func HashMint(a MintAuthorization) []byte {
	var buf bytes.Buffer
	buf.WriteString(authorizationDomainTag)
	writeString(&buf, a.Username)
	writeString(&buf, a.Address)
	writeUint64(&buf, uint64(a.Expiry))
	writeUint64(&buf, a.ChainID)
	writeUint64(&buf, a.Nonce)
	writeBool(&buf, a.Free)
	writeUint64(&buf, a.Years)

	sum := sha3.Sum256(buf.Bytes())
	return sum[:]
}

// HashRenew returns the sha3-256 digest of the deterministic encoding of a.
func HashRenew(a RenewAuthorization) []byte {
	var buf bytes.Buffer
	buf.WriteString(authorizationDomainTag)
	writeString(&buf, a.Username)
	writeString(&buf, a.Address)
	writeUint64(&buf, uint64(a.Expiry))
	writeUint64(&buf, a.ChainID)
	writeUint64(&buf, a.Nonce)
	writeBool(&buf, a.Free)

	sum := sha3.Sum256(buf.Bytes())
	return sum[:]
}

// Strings are length-prefixed so adjacent fields cannot be shifted into each
// other ("ab"+"c" must not hash like "a"+"bc").
func writeString(buf *bytes.Buffer, s string) {
	writeUint64(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
		return
	}
	buf.WriteByte(0)
}

// Sign signs a digest with the off-chain signer's private key. Only the
// development signer tool and tests use this; the API never holds the key.
func Sign(privateKeyHex string, digest []byte) (string, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	sig := ed25519.Sign(ed25519.PrivateKey(raw), digest)
	return hex.EncodeToString(sig), nil
}

// Verify reports whether signatureHex is a valid signature over digest by the
// signer identified by publicKeyHex.
func Verify(publicKeyHex, signatureHex string, digest []byte) (bool, error) {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false, fmt.Errorf("decode public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}

	return ed25519.Verify(ed25519.PublicKey(pub), digest, sig), nil
}

// GenerateKeyPair creates a fresh signer key pair, hex encoded.
func GenerateKeyPair() (publicKeyHex, privateKeyHex string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate key pair: %w", err)
	}
	return hex.EncodeToString(pub), hex.EncodeToString(priv), nil
}
