package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeName upper-cases a base asset and appends the quote asset:
// "abc" becomes "ABCUSDT". Names already ending in the quote are kept.
func NormalizeName(name, quote string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if name == "" || strings.ContainsAny(name, " \t/?&=") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, name)
	}
	if quote != "" && !strings.HasSuffix(name, quote) {
		name += quote
	}
	if name == quote {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, name)
	}
	return name, nil
}

var listingLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseListingDate reads an RFC 3339 instant, or a wall-clock time that is
// interpreted in loc.
func ParseListingDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range listingLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
