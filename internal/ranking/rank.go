package ranking

import (
	"sort"

	"domainflip/internal/availability"
)

// DefaultMaxResults caps ranked output when Options.MaxResults is unset.
const DefaultMaxResults = 15

// Options control filtering and truncation.
type Options struct {
	MaxResults         int
	IncludeUnavailable bool
}

// Rank orders records available-first, then by descending flip score. Records without a score
// sort last within their group and ties keep their input order. The input slice is not
// modified.
func Rank(records []availability.Record, opts Options) []availability.Record {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	ranked := make([]availability.Record, 0, len(records))
	for _, rec := range records {
		if !rec.Available && !opts.IncludeUnavailable {
			continue
		}
		ranked = append(ranked, rec)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Available != b.Available {
			return a.Available
		}
		return scoreOf(a) > scoreOf(b)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func scoreOf(rec availability.Record) int {
	if rec.FlipScore == nil {
		return 0
	}
	return *rec.FlipScore
}
