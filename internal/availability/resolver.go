package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"domainflip/internal/discovery"
	"domainflip/internal/metrics"
	"domainflip/internal/util"
)

const (
	DefaultPrimaryTimeout   = 5 * time.Second
	DefaultSecondaryTimeout = 5 * time.Second
	DefaultConcurrency      = 8

	auditAppendTimeout = 2 * time.Second
)

// Config bounds the resolver's upstream calls.
type Config struct {
	PrimaryTimeout   time.Duration
	SecondaryTimeout time.Duration
	Concurrency      int
	Prices           PriceTable
}

// Resolver reconciles the primary and secondary authorities into a fail-closed availability
// record per candidate.
type Resolver struct {
	primary   PrimaryAuthority
	secondary SecondaryAuthority
	audit     AuditLog
	cfg       Config
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewResolver wires the resolver's collaborators. Any of them may be nil: a missing authority
// resolves every candidate to unavailable, a missing audit log only drops the audit trail.
func NewResolver(cfg Config, primary PrimaryAuthority, secondary SecondaryAuthority, audit AuditLog, m *metrics.Metrics) *Resolver {
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = DefaultPrimaryTimeout
	}
	if cfg.SecondaryTimeout <= 0 {
		cfg.SecondaryTimeout = DefaultSecondaryTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Prices == nil {
		cfg.Prices = DefaultPriceTable()
	}
	return &Resolver{
		primary:   primary,
		secondary: secondary,
		audit:     audit,
		cfg:       cfg,
		metrics:   m,
		now:       time.Now,
	}
}

// ResolveAll resolves candidates concurrently and returns records in candidate order.
func (r *Resolver) ResolveAll(ctx context.Context, candidates []discovery.Candidate) []Record {
	records := make([]Record, len(candidates))
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			records[i] = r.Resolve(ctx, candidate)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// Resolve determines availability for one candidate. It never returns an error: every failure
// resolves to an unavailable record and, for anomalies, exactly one audit entry.
func (r *Resolver) Resolve(ctx context.Context, candidate discovery.Candidate) Record {
	name := candidate.Name()
	record := Record{
		Name:       name,
		BaseName:   candidate.BaseName,
		TLD:        candidate.TLD,
		Resolution: ResolutionUnavailable,
	}

	if r.primary == nil {
		r.anomaly(ctx, name, SourcePrimary, StatusUnconfigured, "no primary availability authority configured")
		return r.finish(failed(record))
	}

	primary, err := r.checkPrimary(ctx, name)
	if err != nil {
		r.anomaly(ctx, name, SourcePrimary, statusForError(err), err.Error())
		return r.finish(failed(record))
	}
	if primary.Available == nil {
		r.anomaly(ctx, name, SourcePrimary, StatusMissingFlag, "primary response did not include an availability flag")
		return r.finish(failed(record))
	}
	if !*primary.Available || primary.Taken() {
		return r.finish(record)
	}

	if r.secondary == nil {
		r.anomaly(ctx, name, SourceSecondary, StatusUnconfigured, "no secondary authority configured to confirm availability")
		return r.finish(failed(record))
	}

	secondary, err := r.lookupSecondary(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		r.anomaly(ctx, name, SourceSecondary, statusForError(err), err.Error())
		return r.finish(failed(record))
	case secondary.Registered():
		r.anomaly(ctx, name, SourceSecondary, StatusOverride,
			fmt.Sprintf("primary reported available but registry status is %v", secondary.Status))
		return r.finish(record)
	}

	record.Available = true
	record.Resolution = ResolutionAvailable
	price := r.cfg.Prices.PriceFor(candidate.TLD)
	if primary.Price != nil {
		price = *primary.Price
	}
	record.Price = &price
	return r.finish(record)
}

func (r *Resolver) checkPrimary(ctx context.Context, name string) (PrimaryResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.PrimaryTimeout)
	defer cancel()
	timer := util.StartTimer()
	result, err := r.primary.Check(callCtx, name)
	r.metrics.ObserveUpstream(string(SourcePrimary), timer.Elapsed())
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	return result, err
}

func (r *Resolver) lookupSecondary(ctx context.Context, name string) (SecondaryResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.SecondaryTimeout)
	defer cancel()
	timer := util.StartTimer()
	result, err := r.secondary.Lookup(callCtx, name)
	r.metrics.ObserveUpstream(string(SourceSecondary), timer.Elapsed())
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	return result, err
}

// anomaly records a non-routine outcome. Audit failures are logged and swallowed.
func (r *Resolver) anomaly(ctx context.Context, name string, source Source, status, message string) {
	r.metrics.IncAnomaly(string(source), status)
	fields := logrus.Fields{
		"domain": name,
		"source": source,
		"status": status,
	}
	logrus.WithFields(fields).Warn(message)

	if r.audit == nil {
		return
	}
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditAppendTimeout)
	defer cancel()
	entry := ValidationLogEntry{
		Domain:    name,
		Source:    source,
		Status:    status,
		Message:   message,
		CreatedAt: r.now().UTC(),
	}
	if err := r.audit.Append(appendCtx, entry); err != nil {
		logrus.WithError(err).WithFields(fields).Warn("append validation log entry")
	}
}

func (r *Resolver) finish(record Record) Record {
	if !record.Available {
		record.Price = nil
	}
	r.metrics.IncResolution(string(record.Resolution))
	return record
}

func failed(record Record) Record {
	record.Available = false
	record.Resolution = ResolutionError
	return record
}

func statusForError(err error) string {
	var timeoutErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.As(err, &timeoutErr) && timeoutErr.Timeout():
		return StatusTimeout
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusError
	}
}
