package registry

import (
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// tokenIDDomainTag is hashed in front of the username so token identifiers
// live in their own hash space. Versioned: bump the suffix if derivation
// ever changes.
const tokenIDDomainTag = "identity-registry/token-id/v1:"

// Caller is the capability value an external component presents when driving
// registry mutations. The registry compares it against the controller value
// in its settings; everything else is rejected.
type Caller string

// Address is a 20-byte account address in canonical lowercase 0x-hex form.
type Address string

const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseAddress validates and canonicalizes an address string.
func ParseAddress(s string) (Address, error) {
	if !addressPattern.MatchString(s) {
		return "", ErrInvalidAddress
	}
	return Address(strings.ToLower(s)), nil
}

func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

func (a Address) String() string {
	return string(a)
}

// TokenID is the deterministic identifier of a username binding:
// sha3-256 over the domain tag plus the username, 0x-hex encoded.
// The same username always maps to the same id, so "does this username
// exist" is a pure hash lookup with no counter or collision table.
type TokenID string

var tokenIDPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// DeriveTokenID computes the token identifier for a username.
func DeriveTokenID(username string) TokenID {
	sum := sha3.Sum256([]byte(tokenIDDomainTag + username))
	return TokenID("0x" + hex.EncodeToString(sum[:]))
}

// ParseTokenID validates a token id string.
func ParseTokenID(s string) (TokenID, error) {
	if !tokenIDPattern.MatchString(strings.ToLower(s)) {
		return "", ErrInvalidTokenID
	}
	return TokenID(strings.ToLower(s)), nil
}

// UsernamePattern constrains registrable usernames: lowercase alphanumeric
// with inner hyphens/underscores, 3-32 characters.
var UsernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,31}$`)

// Identity is the domain entity: one live username binding.
// Maps 1:1 onto the identities table.
type Identity struct {
	TokenID   TokenID    `db:"token_id" json:"token_id"`
	Owner     Address    `db:"owner_address" json:"owner"`
	Username  string     `db:"username" json:"username"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ExpiredAt reports whether the binding is past its expiration at the given
// instant. Only meaningful while expiry enforcement is enabled; callers
// check the settings flag first.
func (i *Identity) ExpiredAt(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// Settings is the registry's administrative state, a single mutable row.
type Settings struct {
	Controller           string        `db:"controller" json:"controller"`
	RegistrationDuration time.Duration `db:"-" json:"registration_duration"`
	ExpiryEnforcement    bool          `db:"expiry_enforcement" json:"expiry_enforcement"`
	MetadataBase         string        `db:"metadata_base" json:"metadata_base"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

// Event is the persisted form of a domain event, appended by the worker for
// external indexers.
type Event struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Type      string    `db:"event_type" json:"type"`
	TokenID   TokenID   `db:"token_id" json:"token_id,omitempty"`
	Owner     Address   `db:"owner_address" json:"owner,omitempty"`
	Username  string    `db:"username" json:"username,omitempty"`
	Payload   []byte    `db:"payload" json:"payload"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
