package privacy

import (
	"strings"
)

// DefaultSensitiveKeys are the mapping keys whose values are always replaced.
var DefaultSensitiveKeys = []string{
	"name",
	"email",
	"phone",
	"address",
	"ssn",
	"government_id",
	"credit_card",
}

// KeySet is a case-insensitive set of sensitive keys. '-' and '_' are equivalent.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet from keys, ignoring blanks
func NewKeySet(keys ...string) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		if n := normalizeKey(k); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// DefaultKeySet returns a KeySet of DefaultSensitiveKeys
func DefaultKeySet() KeySet {
	return NewKeySet(DefaultSensitiveKeys...)
}

// Contains reports whether key is sensitive
func (s KeySet) Contains(key string) bool {
	_, ok := s[normalizeKey(key)]
	return ok
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}

type structuredRedactor struct {
	keys KeySet
}

func (r structuredRedactor) Entry(key string, _ Node) (Node, bool) {
	if r.keys.Contains(key) {
		return String(KeyPlaceholder(key)), true
	}
	return nil, false
}

// KeyPlaceholder returns the placeholder that replaces a sensitive key's value. Keys
// naming a pattern category reuse that category's placeholder; all others get
// FieldPlaceholder.
func KeyPlaceholder(key string) string {
	switch normalizeKey(key) {
	case "email":
		return EmailPlaceholder
	case "phone":
		return PhonePlaceholder
	case "ssn", "government_id":
		return SSNPlaceholder
	case "credit_card":
		return CreditCardPlaceholder
	default:
		return FieldPlaceholder
	}
}

func (r structuredRedactor) Leaf(value Node) Node {
	if s, ok := value.(String); ok {
		return String(Redact(string(s)))
	}
	return value
}

// RedactStructured returns a copy of value with every sensitive key's value replaced by
// its KeyPlaceholder, whatever its shape, and every other string leaf passed through
// Redact. Non-string leaves are unchanged. The result is idempotent.
func RedactStructured(value Node, keys KeySet) Node {
	return Rewrite(value, structuredRedactor{keys: keys})
}

// Redactor binds a configured KeySet.
type Redactor struct {
	keys KeySet
}

// NewRedactor creates a Redactor. A nil or empty set falls back to DefaultKeySet.
func NewRedactor(keys KeySet) *Redactor {
	if len(keys) == 0 {
		keys = DefaultKeySet()
	}
	return &Redactor{keys: keys}
}

// RedactPayload applies RedactStructured with the bound keys
func (r *Redactor) RedactPayload(value Node) Node {
	return RedactStructured(value, r.keys)
}

// RedactText applies Redact
func (r *Redactor) RedactText(text string) string {
	return Redact(text)
}

// Keys exposes the bound key set
func (r *Redactor) Keys() KeySet {
	return r.keys
}
