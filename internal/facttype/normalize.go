package facttype

import (
	"regexp"
	"strings"
)

var spaceRE = regexp.MustCompile(`\s+`)

// CollapseSpace trims and collapses runs of whitespace to single spaces.
func CollapseSpace(s string) string {
	return spaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// LowerTrim lowercases and trims. Used for emails and URLs.
func LowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DigitsOnly strips everything except digits. Business identifiers are
// stored without spaces, hyphens or other separators.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DigitsAndPlus strips separators from phone numbers but keeps a leading +.
func DigitsAndPlus(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Currency normalizes a money amount to whole dollars with no separators:
// "$5,500,000.00" -> "5500000". Magnitude suffixes K/M/B are expanded.
func Currency(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	mult := 1
	if len(s) > 0 {
		switch s[len(s)-1] {
		case 'k', 'K':
			mult = 1_000
			s = s[:len(s)-1]
		case 'm', 'M':
			mult = 1_000_000
			s = s[:len(s)-1]
		case 'b', 'B':
			mult = 1_000_000_000
			s = s[:len(s)-1]
		}
	}

	// Drop cents.
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		if mult == 1 {
			s = s[:idx]
		} else {
			// "1.5M" — shift the fraction into the multiplier.
			frac := s[idx+1:]
			s = s[:idx]
			for len(frac) > 0 && mult > 1 {
				s += string(frac[0])
				frac = frac[1:]
				mult /= 10
			}
		}
	}

	s = DigitsOnly(s)
	if s == "" {
		return ""
	}
	for mult > 1 {
		s += "0"
		mult /= 10
	}
	if trimmed := strings.TrimLeft(s, "0"); trimmed != "" {
		return trimmed
	}
	return "0"
}
