package scoring

import (
	"strings"

	"domainflip/internal/match"
)

const (
	baseScore     = 30
	minFlipScore  = 1
	maxFlipScore  = 100
	trendBoost    = 5
	trendBoostCap = 15
	stopWordHit   = 10

	// Names past unmemorableLen take the heaviest length penalty and are not
	// eligible for the brandability or pronounceability bonuses.
	longNameLen    = 15
	unmemorableLen = 25

	baseTrendStrength = 2
	minTrendStrength  = 1
	maxTrendStrength  = 5
)

// Result is the FlipScore output for a single domain name.
type Result struct {
	FlipScore     int `json:"flip_score"`
	TrendStrength int `json:"trend_strength"`
}

var tldBonus = map[string]int{
	"com":  30,
	"ai":   28,
	"io":   25,
	"app":  20,
	"dev":  18,
	"net":  15,
	"tech": 15,
	"org":  12,
	"co":   12,
	"xyz":  5,
}

const unknownTLDBonus = 5

var trendKeywords = []string{"ai", "app", "tech", "hub", "pro", "get", "my", "smart", "digital", "crypto", "nft", "meta"}

var strengthKeywords = []string{"ai", "crypto", "nft", "meta", "web3", "tech", "app", "smart", "digital"}

var stopWords = []string{"the", "and", "but", "for", "with", "from", "this", "that"}

// Score computes the FlipScore and trend strength for domainName. It is pure: the same input
// always yields the same result, and it performs no I/O.
func Score(domainName string) Result {
	profile := match.NormalizeDomain(domainName)
	return Result{
		FlipScore:     flipScore(profile.BaseName, profile.TLD),
		TrendStrength: trendStrength(profile.BaseName),
	}
}

func flipScore(base, tld string) int {
	score := baseScore
	score += lengthBonus(len(base))

	if bonus, ok := tldBonus[tld]; ok {
		score += bonus
	} else {
		score += unknownTLDBonus
	}

	if len(base) <= unmemorableLen {
		score += brandability(base)
		if pronounceable(base) {
			score += 10
		}
	}

	score += trendBonus(base)

	if containsAny(base, stopWords) {
		score -= stopWordHit
	}

	return clampInt(score, minFlipScore, maxFlipScore)
}

func lengthBonus(n int) int {
	switch {
	case n <= 4:
		return 30
	case n <= 6:
		return 25
	case n <= 8:
		return 15
	case n <= 10:
		return 5
	case n > unmemorableLen:
		return -35
	case n > longNameLen:
		return -20
	default:
		return 0
	}
}

func brandability(base string) int {
	if base == "" || strings.ContainsAny(base, "-0123456789") {
		return 0
	}
	bonus := 15
	if isLowerAlpha(base) {
		bonus += 5
	}
	return bonus
}

func pronounceable(base string) bool {
	var vowels, consonants int
	for _, r := range base {
		switch {
		case strings.ContainsRune("aeiou", r):
			vowels++
		case r >= 'a' && r <= 'z':
			consonants++
		}
	}
	if vowels == 0 || consonants == 0 {
		return false
	}
	return float64(vowels)/float64(len(base)) >= 0.2
}

func trendBonus(base string) int {
	bonus := 0
	for _, keyword := range trendKeywords {
		if strings.Contains(base, keyword) {
			bonus += trendBoost
		}
	}
	if bonus > trendBoostCap {
		bonus = trendBoostCap
	}
	return bonus
}

func trendStrength(base string) int {
	strength := baseTrendStrength
	for _, keyword := range strengthKeywords {
		if strings.Contains(base, keyword) {
			strength++
		}
	}
	return clampInt(strength, minTrendStrength, maxTrendStrength)
}

func isLowerAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return s != ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
