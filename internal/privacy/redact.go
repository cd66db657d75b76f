package privacy

import (
	"regexp"
)

// PIIType represents a category of PII recognised in free text
type PIIType string

const (
	PIITypeEmail      PIIType = "email"
	PIITypePhone      PIIType = "phone"
	PIITypeSSN        PIIType = "ssn"
	PIITypeCreditCard PIIType = "credit_card"
)

// Placeholders are built only from upper-case letters, '_' and brackets so that no
// pattern below can match inside one.
const (
	EmailPlaceholder      = "[EMAIL_REDACTED]"
	PhonePlaceholder      = "[PHONE_REDACTED]"
	SSNPlaceholder        = "[SSN_REDACTED]"
	CreditCardPlaceholder = "[CC_REDACTED]"

	// FieldPlaceholder replaces the whole value of a sensitive key.
	FieldPlaceholder = "[REDACTED]"
)

type redactionRule struct {
	piiType     PIIType
	pattern     *regexp.Regexp
	placeholder string
}

// Applied in this order on every pass.
var redactionRules = []redactionRule{
	{
		piiType:     PIITypeEmail,
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		placeholder: EmailPlaceholder,
	},
	{
		// NANP: optional +1/1 country code, optional parenthesised area code,
		// '-', '.' or whitespace separators.
		piiType:     PIITypePhone,
		pattern:     regexp.MustCompile(`(?:(?:\+|\b)1[-.\s]?(?:\(\d{3}\)|\d{3})|\(\d{3}\)|\b\d{3})[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		placeholder: PhonePlaceholder,
	},
	{
		piiType:     PIITypeSSN,
		pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		placeholder: SSNPlaceholder,
	},
	{
		// Three groups of four followed by 1-7 more digits: 13 to 19 digits in total.
		piiType:     PIITypeCreditCard,
		pattern:     regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{1,4}(?:[-\s]?\d{1,3})?\b`),
		placeholder: CreditCardPlaceholder,
	},
}

// Redact replaces every email, phone number, SSN-like and card-like sequence in text
// with its category placeholder.
//
// Passes are repeated until the text no longer changes. Every match consumes at least
// one digit or '@' and placeholders contain neither, so the loop terminates and the
// result is a fixed point: Redact(Redact(s)) == Redact(s).
func Redact(text string) string {
	out, _ := redactCounting(text)
	return out
}

// CountPII reports how many matches of each category Redact would replace in text.
func CountPII(text string) map[PIIType]int {
	_, counts := redactCounting(text)
	return counts
}

func redactCounting(text string) (string, map[PIIType]int) {
	counts := make(map[PIIType]int)
	if text == "" {
		return text, counts
	}

	for {
		next := text
		for _, rule := range redactionRules {
			matches := rule.pattern.FindAllStringIndex(next, -1)
			if len(matches) == 0 {
				continue
			}
			counts[rule.piiType] += len(matches)
			next = rule.pattern.ReplaceAllLiteralString(next, rule.placeholder)
		}
		if next == text {
			return next, counts
		}
		text = next
	}
}
