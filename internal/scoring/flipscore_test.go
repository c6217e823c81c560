package scoring

import "testing"

func TestScoreBounds(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		min    int
		max    int
	}{
		{"short premium", "ai.com", 90, 100},
		{"unmemorable", "verylongdomainnamethatistoohardtoremember.com", 20, 35},
		{"digits no brandability", "x9.xyz", 65, 65},
		{"stop word penalty", "brandly.zz", 60, 60},
		{"short unknown tld", "zork.zz", 95, 95},
		{"fourteen chars", "supermindcloud.com", 90, 90},
		{"seventeen chars keeps brand bonuses", "supermindcloudhub.com", 75, 75},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Score(tc.domain)
			if result.FlipScore < tc.min || result.FlipScore > tc.max {
				t.Fatalf("expected score in [%d,%d] got %d", tc.min, tc.max, result.FlipScore)
			}
		})
	}
}

func TestScoreTLDMonotonicity(t *testing.T) {
	com := Score("startup.com").FlipScore
	xyz := Score("startup.xyz").FlipScore
	if com <= xyz {
		t.Fatalf("expected startup.com (%d) to outscore startup.xyz (%d)", com, xyz)
	}
}

func TestScoreIsPure(t *testing.T) {
	for _, domain := range []string{"aihub.com", "getsupermind.io", "my-app.dev", ""} {
		first := Score(domain)
		second := Score(domain)
		if first != second {
			t.Fatalf("score for %q drifted: %+v vs %+v", domain, first, second)
		}
	}
}

func TestScoreAlwaysClamped(t *testing.T) {
	for _, domain := range []string{"", ".", "a", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.unknown", "ai.ai"} {
		result := Score(domain)
		if result.FlipScore < 1 || result.FlipScore > 100 {
			t.Fatalf("score for %q out of range: %d", domain, result.FlipScore)
		}
		if result.TrendStrength < 1 || result.TrendStrength > 5 {
			t.Fatalf("trend strength for %q out of range: %d", domain, result.TrendStrength)
		}
	}
}

func TestTrendStrength(t *testing.T) {
	tests := []struct {
		domain   string
		expected int
	}{
		{"zork.com", 2},
		{"aihub.com", 3},
		{"aicryptometa.io", 5},
		{"web3nftaiapptech.io", 5},
	}
	for _, tc := range tests {
		t.Run(tc.domain, func(t *testing.T) {
			if got := Score(tc.domain).TrendStrength; got != tc.expected {
				t.Fatalf("expected %d got %d", tc.expected, got)
			}
		})
	}
}

func TestTrendBonusCapped(t *testing.T) {
	// ai, app, tech, hub, pro would be +25 uncapped.
	if got := trendBonus("aiapptechhubpro"); got != 15 {
		t.Fatalf("expected capped bonus 15 got %d", got)
	}
}
