package discovery

import (
	"errors"
	"strings"

	"domainflip/internal/match"
)

// ErrEmptyKeyword is returned when a pattern is blank after trimming.
var ErrEmptyKeyword = errors.New("keyword is empty")

// ErrNoCandidates is returned when no expansion of a pattern fits the base name length bounds.
var ErrNoCandidates = errors.New("pattern yields no candidate names")

const wildcard = "*"

// Length bounds for a generated base name, inclusive.
const (
	MinBaseLen = 3
	MaxBaseLen = 20
)

const (
	// DefaultMaxCandidates caps the domains resolved for one request.
	DefaultMaxCandidates = 24
	// DefaultTLDsPerName is how many TLDs from the front of the list each base name is crossed with.
	DefaultTLDsPerName = 3
)

// Operation is the billable operation a query maps to.
type Operation string

// Billable operations. Each has its own credit cost.
const (
	// OperationSearch is a literal keyword search.
	OperationSearch Operation = "search"
	// OperationWildcardExplore is a pattern containing '*'.
	OperationWildcardExplore Operation = "wildcard_explore"
	// OperationAISuggest resolves names proposed by the suggester.
	OperationAISuggest Operation = "ai_suggest"
	// OperationScorePreview scores one name without resolving it.
	OperationScorePreview Operation = "score_preview"
)

// Prefixes are prepended to a keyword (and expand a leading wildcard).
var Prefixes = []string{"get", "my", "try", "go", "the", "pro", "super", "smart", "hey", "use"}

// Suffixes are appended to a keyword (and expand a trailing wildcard).
var Suffixes = []string{"hub", "lab", "app", "ly", "ify", "io", "hq", "pro", "box", "kit"}

// AlternativeWords extend a trailing wildcard beyond the suffix list.
var AlternativeWords = []string{"tech", "ai", "cloud", "base", "flow", "wise", "zone", "spot"}

// MiddleFillers join the two halves of an infix wildcard.
var MiddleFillers = []string{"", "o", "a", "i", "ly", "er"}

// DefaultTLDs is the ordered TLD set crossed with every base name.
var DefaultTLDs = []string{"com", "net", "org", "io", "ai", "app", "dev", "tech", "co", "xyz"}

// Candidate is a single base name + TLD pair produced for one search request.
type Candidate struct {
	BaseName string `json:"base_name"`
	TLD      string `json:"tld"`
}

// Name returns the full domain name.
func (c Candidate) Name() string {
	return c.BaseName + "." + c.TLD
}

// Expander turns a raw query into a bounded, deterministic candidate list.
type Expander struct {
	MaxCandidates int
	TLDsPerName   int
	TLDs          []string
}

// NewExpander returns an expander with default bounds.
func NewExpander() *Expander {
	return &Expander{
		MaxCandidates: DefaultMaxCandidates,
		TLDsPerName:   DefaultTLDsPerName,
		TLDs:          DefaultTLDs,
	}
}

// Expand generates the candidate list for pattern. The output is a pure function of the
// pattern and the expander bounds.
func (e *Expander) Expand(pattern string) ([]Candidate, error) {
	names, err := BaseNames(pattern)
	if err != nil {
		return nil, err
	}
	return e.Cross(names), nil
}

// Cross pairs every base name with the configured TLDs, name-major, up to the candidate cap.
func (e *Expander) Cross(names []string) []Candidate {
	tlds := e.TLDs
	if len(tlds) == 0 {
		tlds = DefaultTLDs
	}
	perName := e.TLDsPerName
	if perName <= 0 || perName > len(tlds) {
		perName = len(tlds)
	}
	limit := e.MaxCandidates
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}

	out := make([]Candidate, 0, limit)
	for _, name := range names {
		for _, tld := range tlds[:perName] {
			if len(out) >= limit {
				return out
			}
			out = append(out, Candidate{BaseName: name, TLD: tld})
		}
	}
	return out
}

// BaseNames expands pattern into deduplicated base names of brandable length.
func BaseNames(pattern string) ([]string, error) {
	cleaned := sanitizePattern(pattern)
	if strings.Trim(cleaned, wildcard) == "" {
		return nil, ErrEmptyKeyword
	}

	var raw []string
	switch {
	case !strings.Contains(cleaned, wildcard):
		raw = append(raw, cleaned)
		raw = append(raw, combinePrefix(Prefixes, cleaned)...)
		raw = append(raw, combineSuffix(cleaned, Suffixes)...)
	case strings.HasPrefix(cleaned, wildcard):
		suffix := strings.Trim(cleaned, wildcard)
		raw = combinePrefix(Prefixes, suffix)
	case strings.HasSuffix(cleaned, wildcard):
		prefix := strings.Trim(cleaned, wildcard)
		raw = append(combineSuffix(prefix, Suffixes), combineSuffix(prefix, AlternativeWords)...)
	default:
		idx := strings.Index(cleaned, wildcard)
		head := cleaned[:idx]
		tail := strings.ReplaceAll(cleaned[idx+1:], wildcard, "")
		for _, filler := range MiddleFillers {
			raw = append(raw, head+filler+tail)
		}
	}

	return filterNames(raw), nil
}

// Classify maps a query to the billable operation it triggers.
func Classify(pattern string) Operation {
	if strings.Contains(pattern, wildcard) {
		return OperationWildcardExplore
	}
	return OperationSearch
}

func combinePrefix(prefixes []string, word string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, p+word)
	}
	return out
}

func combineSuffix(word string, suffixes []string) []string {
	out := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		out = append(out, word+s)
	}
	return out
}

func sanitizePattern(pattern string) string {
	trimmed := strings.ToLower(strings.TrimSpace(pattern))
	// A pasted domain keeps only its base name.
	if !strings.Contains(trimmed, wildcard) && strings.Contains(trimmed, ".") {
		trimmed = match.NormalizeDomain(trimmed).BaseName
	}
	var b strings.Builder
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '*' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

func filterNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.Trim(name, "-")
		if len(name) < MinBaseLen || len(name) > MaxBaseLen {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
