package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by a secondary authority when the registry holds no object for the
// name, which confirms availability.
var ErrNotFound = errors.New("domain not found in registry")

// Source identifies which part of the pipeline produced a validation log entry.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceBuyLink   Source = "buy_link"
)

// Status tokens recorded on validation log entries.
const (
	StatusError        = "error"
	StatusTimeout      = "timeout"
	StatusCancelled    = "cancelled"
	StatusMissingFlag  = "missing_flag"
	StatusUnconfigured = "unconfigured"
	StatusOverride     = "override"
)

// Resolution is the terminal state of one candidate.
type Resolution string

const (
	ResolutionAvailable   Resolution = "available"
	ResolutionUnavailable Resolution = "unavailable"
	ResolutionError       Resolution = "unavailable_error"
)

// ValidationLogEntry is one append-only audit record describing a resolver anomaly.
type ValidationLogEntry struct {
	Domain    string    `json:"domain"`
	Source    Source    `json:"source"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLog receives validation log entries. Implementations must accept unordered concurrent
// appends.
type AuditLog interface {
	Append(ctx context.Context, entry ValidationLogEntry) error
}

// PrimaryResult is the registrar-style availability answer. Available is nil when the upstream
// omitted the flag.
type PrimaryResult struct {
	Available *bool            `json:"available"`
	Status    string           `json:"status,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// Taken reports whether the status text marks the name as registered.
func (r PrimaryResult) Taken() bool {
	status := strings.ToLower(r.Status)
	return strings.Contains(status, "taken") || strings.Contains(status, "registered")
}

// SecondaryResult is the registry-protocol lookup answer for an existing object.
type SecondaryResult struct {
	Status []string `json:"status"`
}

var freeStatuses = map[string]struct{}{
	"available": {},
	"free":      {},
}

// Registered reports whether the registry object indicates the name is in use. An object
// that exists but carries no status is treated as registered.
func (r SecondaryResult) Registered() bool {
	if len(r.Status) == 0 {
		return true
	}
	for _, s := range r.Status {
		if _, ok := freeStatuses[strings.ToLower(strings.TrimSpace(s))]; !ok {
			return true
		}
	}
	return false
}

// PrimaryAuthority is the registrar-style availability API.
type PrimaryAuthority interface {
	Check(ctx context.Context, domainName string) (PrimaryResult, error)
}

// SecondaryAuthority is the registry-protocol lookup used to catch primary false positives.
type SecondaryAuthority interface {
	Lookup(ctx context.Context, domainName string) (SecondaryResult, error)
}

// Record is the resolved, optionally scored, outcome for one candidate.
type Record struct {
	Name          string           `json:"name"`
	BaseName      string           `json:"base_name"`
	TLD           string           `json:"tld"`
	Available     bool             `json:"available"`
	Price         *decimal.Decimal `json:"price"`
	FlipScore     *int             `json:"flip_score,omitempty"`
	TrendStrength *int             `json:"trend_strength,omitempty"`
	Resolution    Resolution       `json:"resolution"`
}
