package domain

import "regexp"

var (
	tickerRegex    = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// ValidTicker reports whether s is a well-formed ticker (e.g. "IT008").
func ValidTicker(s string) bool {
	return tickerRegex.MatchString(s)
}

// ValidAccountID reports whether s is a well-formed account identifier.
func ValidAccountID(s string) bool {
	return accountIDRegex.MatchString(s)
}
