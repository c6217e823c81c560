package match

import (
	"regexp"
	"strings"
)

var (
	protocolStripper = regexp.MustCompile(`^https?://`)
	nonLabel         = regexp.MustCompile(`[^a-z0-9-]`)
)

// DomainProfile captures the normalization output for a domain string.
type DomainProfile struct {
	BaseName string
	TLD      string
}

// Name returns the normalized "base.tld" form, or just the base name when no TLD is present.
func (p DomainProfile) Name() string {
	if p.TLD == "" {
		return p.BaseName
	}
	return p.BaseName + "." + p.TLD
}

// NormalizeDomain lowercases and strips URL decoration from input and splits the result into
// the registrable base name (the label before the last dot) and its TLD.
func NormalizeDomain(input string) DomainProfile {
	lower := strings.ToLower(strings.TrimSpace(input))
	lower = protocolStripper.ReplaceAllString(lower, "")

	for _, sep := range []string{"/", "?", "#"} {
		if idx := strings.Index(lower, sep); idx >= 0 {
			lower = lower[:idx]
		}
	}

	// user:pass@host
	if idx := strings.LastIndex(lower, "@"); idx >= 0 {
		lower = lower[idx+1:]
	}

	lower = strings.Trim(lower, ".")
	lower = strings.TrimPrefix(lower, "www.")

	host := lower
	if idx := strings.IndexRune(host, ':'); idx >= 0 {
		host = host[:idx]
	}

	segments := compactSegments(strings.Split(host, "."))
	var profile DomainProfile
	switch len(segments) {
	case 0:
		return profile
	case 1:
		profile.BaseName = CleanLabel(segments[0])
	default:
		profile.BaseName = CleanLabel(segments[len(segments)-2])
		profile.TLD = CleanLabel(segments[len(segments)-1])
	}
	return profile
}

// CleanLabel keeps only the characters allowed in a DNS label.
func CleanLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	return nonLabel.ReplaceAllString(label, "")
}

func compactSegments(in []string) []string {
	var out []string
	for _, seg := range in {
		if trimmed := strings.TrimSpace(seg); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
