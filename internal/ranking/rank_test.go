package ranking

import (
	"fmt"
	"testing"

	"domainflip/internal/availability"
)

func rec(name string, available bool, score int) availability.Record {
	r := availability.Record{Name: name, Available: available}
	if score > 0 {
		r.FlipScore = &score
	}
	return r
}

func names(records []availability.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func TestRankOrdering(t *testing.T) {
	input := []availability.Record{
		rec("taken-high.com", false, 99),
		rec("mid.com", true, 60),
		rec("noscore.com", true, 0),
		rec("top.com", true, 90),
		rec("tie-a.com", true, 60),
		rec("taken-low.com", false, 10),
	}

	got := names(Rank(input, Options{IncludeUnavailable: true}))
	want := []string{"top.com", "mid.com", "tie-a.com", "noscore.com", "taken-high.com", "taken-low.com"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if input[0].Name != "taken-high.com" {
		t.Fatalf("input slice was reordered")
	}
}

func TestRankExcludesUnavailableByDefault(t *testing.T) {
	input := []availability.Record{
		rec("aiapp.com", false, 0),
		rec("aihub.com", true, 80),
	}
	got := Rank(input, Options{})
	if len(got) != 1 || got[0].Name != "aihub.com" {
		t.Fatalf("expected only aihub.com, got %v", names(got))
	}
}

func TestRankInvariants(t *testing.T) {
	var input []availability.Record
	for i := 0; i < 40; i++ {
		input = append(input, rec(fmt.Sprintf("d%02d.com", i), i%3 != 0, (i*37)%100))
	}

	for _, include := range []bool{true, false} {
		got := Rank(input, Options{IncludeUnavailable: include})
		if len(got) != DefaultMaxResults {
			t.Fatalf("expected %d results, got %d", DefaultMaxResults, len(got))
		}
		seenUnavailable := false
		for i, r := range got {
			if !r.Available {
				seenUnavailable = true
				continue
			}
			if seenUnavailable {
				t.Fatalf("available %s ranked after an unavailable record", r.Name)
			}
			if i > 0 && got[i-1].Available && scoreOf(got[i-1]) < scoreOf(r) {
				t.Fatalf("scores increase at index %d: %v", i, names(got))
			}
		}
	}
}

func TestRankCustomLimit(t *testing.T) {
	input := []availability.Record{rec("a.com", true, 1), rec("b.com", true, 2), rec("c.com", true, 3)}
	got := Rank(input, Options{MaxResults: 2})
	if fmt.Sprint(names(got)) != "[c.com b.com]" {
		t.Fatalf("unexpected result %v", names(got))
	}
	if got := Rank(nil, Options{}); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}
