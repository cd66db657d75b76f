package privacy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"
)

const (
	// NoAddress is the truncated prefix reported when the input is not an IP address.
	NoAddress = "0.0.0.0"

	ipv4PrefixBits = 24
	ipv6PrefixBits = 48
)

// IPAnonymization is the storage-safe form of a client address.
type IPAnonymization struct {
	TruncatedPrefix string `json:"ip_trunc"`
	SaltedHash      string `json:"ip_hash"`

	// Valid is false when the raw input could not be parsed.
	Valid bool `json:"ip_valid"`
}

// Anonymize truncates rawAddress to its /24 (IPv4) or /48 (IPv6) network and computes
// a salted HMAC-SHA256 of the canonical address. Unparseable input yields the NoAddress
// prefix, an empty hash and Valid=false.
func Anonymize(rawAddress, salt string) IPAnonymization {
	addr, err := netip.ParseAddr(strings.TrimSpace(rawAddress))
	if err != nil {
		return IPAnonymization{TruncatedPrefix: NoAddress}
	}
	addr = addr.WithZone("").Unmap()

	bits := ipv6PrefixBits
	if addr.Is4() {
		bits = ipv4PrefixBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return IPAnonymization{TruncatedPrefix: NoAddress}
	}

	return IPAnonymization{
		TruncatedPrefix: prefix.String(),
		SaltedHash:      hashAddress(addr.String(), salt),
		Valid:           true,
	}
}

func hashAddress(canonical, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Anonymizer binds the process-wide salt so the pipeline never handles it directly.
type Anonymizer struct {
	salt string
}

// NewAnonymizer creates an Anonymizer for the given salt
func NewAnonymizer(salt string) *Anonymizer {
	return &Anonymizer{salt: salt}
}

// Anonymize anonymizes rawAddress under the bound salt
func (a *Anonymizer) Anonymize(rawAddress string) IPAnonymization {
	return Anonymize(rawAddress, a.salt)
}
