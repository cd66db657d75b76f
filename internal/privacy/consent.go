package privacy

// ConsentFlags is the consent a client declares with an event. Pointers distinguish an
// absent flag from an explicit false.
type ConsentFlags struct {
	Analytics  *bool `json:"analytics"`
	Marketing  *bool `json:"marketing,omitempty"`
	Functional *bool `json:"functional,omitempty"`
}

// IsAnalyticsConsentGiven reports whether analytics was explicitly granted. Absent or
// null analytics means no consent.
func IsAnalyticsConsentGiven(flags ConsentFlags) bool {
	return flags.Analytics != nil && *flags.Analytics
}

// IsFunctionalConsentGiven defaults to true when the flag is absent
func IsFunctionalConsentGiven(flags ConsentFlags) bool {
	return flags.Functional == nil || *flags.Functional
}

// IsMarketingConsentGiven reports whether marketing was explicitly granted
func IsMarketingConsentGiven(flags ConsentFlags) bool {
	return flags.Marketing != nil && *flags.Marketing
}
