package availability

import (
	"context"
	"hash/fnv"
)

// SimulatedAuthority stands in for both upstream authorities in simulation mode. Answers are
// derived from a hash of the name, so a given name always gets the same answer. It must only
// be wired when simulation mode is explicitly enabled; it is never a fallback for a failing
// real authority.
type SimulatedAuthority struct {
	// AvailablePercent is the share of names the simulated registrar reports as available.
	AvailablePercent uint32
}

// NewSimulatedAuthority returns a simulator reporting roughly 55% of names as available.
func NewSimulatedAuthority() *SimulatedAuthority {
	return &SimulatedAuthority{AvailablePercent: 55}
}

// Check implements PrimaryAuthority.
func (s *SimulatedAuthority) Check(ctx context.Context, domainName string) (PrimaryResult, error) {
	if err := ctx.Err(); err != nil {
		return PrimaryResult{}, err
	}
	available := hashName(domainName)%100 < s.AvailablePercent
	result := PrimaryResult{Available: &available, Status: "simulated"}
	if !available {
		result.Status = "simulated taken"
	}
	return result, nil
}

// Lookup implements SecondaryAuthority. About one in ten names the registrar calls available
// come back registered so the override path stays exercised.
func (s *SimulatedAuthority) Lookup(ctx context.Context, domainName string) (SecondaryResult, error) {
	if err := ctx.Err(); err != nil {
		return SecondaryResult{}, err
	}
	if (hashName(domainName)>>8)%10 == 0 {
		return SecondaryResult{Status: []string{"active"}}, nil
	}
	return SecondaryResult{}, ErrNotFound
}

func hashName(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}
