package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"domainflip/internal/availability"
	"domainflip/internal/discovery"
	"domainflip/internal/ledger"
	"domainflip/internal/match"
	"domainflip/internal/metrics"
	"domainflip/internal/ranking"
	"domainflip/internal/scoring"
	"domainflip/internal/store"
	"domainflip/internal/suggest"
	"domainflip/internal/util"
)

// User-visible messages for empty result sets.
const (
	MessageNoneAvailable = "no available domains found for this pattern"
	MessageUnavailable   = "search temporarily unavailable"
)

// Costs is the credit price of each billable operation. A zero cost skips the gate.
type Costs struct {
	Search          int `json:"search"`
	WildcardExplore int `json:"wildcard_explore"`
	AISuggest       int `json:"ai_suggest"`
	ScorePreview    int `json:"score_preview"`
}

// DefaultCosts returns the built-in price list.
func DefaultCosts() Costs {
	return Costs{Search: 1, WildcardExplore: 2, AISuggest: 3}
}

// For returns the cost of op.
func (c Costs) For(op discovery.Operation) int {
	switch op {
	case discovery.OperationWildcardExplore:
		return c.WildcardExplore
	case discovery.OperationAISuggest:
		return c.AISuggest
	case discovery.OperationScorePreview:
		return c.ScorePreview
	default:
		return c.Search
	}
}

// History persists completed searches.
type History interface {
	SaveSearch(ctx context.Context, entry *store.SearchHistory) error
}

// Config tunes the pipeline.
type Config struct {
	Costs               Costs
	MaxResults          int
	SuggestLimit        int
	HistoryWriteTimeout time.Duration
}

// Deps are the collaborators of a Service. Expander, Resolver and Gate are required.
type Deps struct {
	Expander  *discovery.Expander
	Resolver  *availability.Resolver
	Gate      *ledger.Gate
	Suggester suggest.Suggester
	History   History
	Notifier  Notifier
	Metrics   *metrics.Metrics
}

// Service runs the discovery pipeline behind the credit gate.
type Service struct {
	cfg  Config
	deps Deps
}

// NewService wires the pipeline.
func NewService(cfg Config, deps Deps) *Service {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = ranking.DefaultMaxResults
	}
	if cfg.SuggestLimit <= 0 {
		cfg.SuggestLimit = suggest.DefaultLimit
	}
	if cfg.HistoryWriteTimeout <= 0 {
		cfg.HistoryWriteTimeout = 2 * time.Second
	}
	if deps.Expander == nil {
		deps.Expander = discovery.NewExpander()
	}
	return &Service{cfg: cfg, deps: deps}
}

// Costs exposes the configured price list.
func (s *Service) Costs() Costs {
	return s.cfg.Costs
}

// Request is one discovery query.
type Request struct {
	Pattern            string
	Principal          ledger.Principal
	IncludeUnavailable bool
}

// Response is the pipeline result. When Outcome is not allowed the pipeline did not run and
// Domains is empty.
type Response struct {
	RequestID  string                `json:"request_id"`
	Operation  discovery.Operation   `json:"operation"`
	Domains    []availability.Record `json:"domains"`
	Message    string                `json:"message,omitempty"`
	Outcome    ledger.Outcome        `json:"outcome"`
	Candidates int                   `json:"candidates"`
	Available  int                   `json:"available"`
	DurationMs int64                 `json:"duration_ms"`
}

// Search runs a keyword or wildcard query. A blank pattern fails with
// discovery.ErrEmptyKeyword, and one with no name inside the length bounds with
// discovery.ErrNoCandidates, both before any ledger or upstream I/O.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	names, err := discovery.BaseNames(req.Pattern)
	if err != nil {
		return Response{}, err
	}
	if len(names) == 0 {
		return Response{}, discovery.ErrNoCandidates
	}
	op := discovery.Classify(req.Pattern)
	return s.run(ctx, op, req, func(context.Context) ([]string, error) { return names, nil })
}

// Suggest runs the AI-suggest operation: names come from the suggester instead of the
// expansion word lists and then flow through the same resolve, score and rank stages.
func (s *Service) Suggest(ctx context.Context, req Request) (Response, error) {
	keyword := match.CleanLabel(req.Pattern)
	if keyword == "" {
		return Response{}, discovery.ErrEmptyKeyword
	}
	if s.deps.Suggester == nil || !s.deps.Suggester.Enabled() {
		return Response{}, suggest.ErrDisabled
	}
	req.Pattern = keyword
	return s.run(ctx, discovery.OperationAISuggest, req, func(ctx context.Context) ([]string, error) {
		return s.deps.Suggester.Suggest(ctx, keyword, s.cfg.SuggestLimit)
	})
}

// ScorePreview scores a single name without resolving availability.
func (s *Service) ScorePreview(ctx context.Context, domainName string, p ledger.Principal) (scoring.Result, ledger.Outcome, error) {
	profile := match.NormalizeDomain(domainName)
	if profile.BaseName == "" {
		return scoring.Result{}, ledger.Outcome{}, discovery.ErrEmptyKeyword
	}
	outcome := ledger.Outcome{Status: ledger.StatusOK}
	if cost := s.cfg.Costs.For(discovery.OperationScorePreview); cost > 0 {
		outcome = s.deps.Gate.TryDebit(ctx, p, cost, string(discovery.OperationScorePreview))
		if !outcome.Allowed() {
			return scoring.Result{}, outcome, nil
		}
	}
	return scoring.Score(profile.Name()), outcome, nil
}

func (s *Service) run(ctx context.Context, op discovery.Operation, req Request, baseNames func(context.Context) ([]string, error)) (Response, error) {
	timer := util.StartTimer()
	resp := Response{
		RequestID: uuid.NewString(),
		Operation: op,
		Domains:   []availability.Record{},
		Outcome:   ledger.Outcome{Status: ledger.StatusOK},
	}
	logger := logrus.WithFields(logrus.Fields{
		"request_id": resp.RequestID,
		"operation":  op,
		"pattern":    req.Pattern,
		"user_id":    req.Principal.UserID,
	})

	if cost := s.cfg.Costs.For(op); cost > 0 {
		resp.Outcome = s.deps.Gate.TryDebit(ctx, req.Principal, cost, string(op))
	}
	if !resp.Outcome.Allowed() {
		s.publish(Event{Type: EventRejected, RequestID: resp.RequestID, UserID: req.Principal.UserID, Pattern: req.Pattern, Operation: op, Message: string(resp.Outcome.Status)})
		return resp, nil
	}
	s.publish(Event{Type: EventStarted, RequestID: resp.RequestID, UserID: req.Principal.UserID, Pattern: req.Pattern, Operation: op})

	names, err := baseNames(ctx)
	if err != nil {
		if errors.Is(err, discovery.ErrEmptyKeyword) {
			return resp, err
		}
		logger.WithError(err).Warn("candidate generation failed")
		resp.Message = MessageUnavailable
		return s.finish(ctx, req, resp, timer), nil
	}

	candidates := s.deps.Expander.Cross(names)
	resp.Candidates = len(candidates)

	var records []availability.Record
	if s.deps.Resolver != nil {
		records = s.deps.Resolver.ResolveAll(ctx, candidates)
	}
	failed := 0
	for i := range records {
		switch {
		case records[i].Available:
			result := scoring.Score(records[i].Name)
			records[i].FlipScore = &result.FlipScore
			records[i].TrendStrength = &result.TrendStrength
			resp.Available++
		case records[i].Resolution == availability.ResolutionError:
			failed++
		}
	}

	resp.Domains = ranking.Rank(records, ranking.Options{
		MaxResults:         s.cfg.MaxResults,
		IncludeUnavailable: req.IncludeUnavailable,
	})
	if resp.Available == 0 {
		resp.Message = MessageNoneAvailable
		if len(records) == 0 || failed == len(records) {
			resp.Message = MessageUnavailable
		}
	}

	resp = s.finish(ctx, req, resp, timer)
	logger.WithFields(logrus.Fields{
		"candidates":  resp.Candidates,
		"available":   resp.Available,
		"duration_ms": resp.DurationMs,
	}).Info("search completed")
	return resp, nil
}

func (s *Service) finish(ctx context.Context, req Request, resp Response, timer util.Timer) Response {
	elapsed := timer.Elapsed()
	resp.DurationMs = elapsed.Milliseconds()
	s.deps.Metrics.ObserveSearch(string(resp.Operation), elapsed)

	for i := range resp.Domains {
		record := resp.Domains[i]
		s.publish(Event{Type: EventDomain, RequestID: resp.RequestID, UserID: req.Principal.UserID, Operation: resp.Operation, Domain: &record})
	}
	s.publish(Event{Type: EventCompleted, RequestID: resp.RequestID, UserID: req.Principal.UserID, Pattern: req.Pattern, Operation: resp.Operation, Message: resp.Message})

	s.saveHistory(ctx, req, resp)
	return resp
}

func (s *Service) saveHistory(ctx context.Context, req Request, resp Response) {
	if s.deps.History == nil {
		return
	}
	names := make([]string, 0, len(resp.Domains))
	for _, d := range resp.Domains {
		if d.Available {
			names = append(names, d.Name)
		}
	}
	entry := &store.SearchHistory{
		RequestID:      resp.RequestID,
		UserID:         req.Principal.UserID,
		Pattern:        strings.TrimSpace(req.Pattern),
		Operation:      string(resp.Operation),
		CandidateCount: resp.Candidates,
		AvailableCount: resp.Available,
		Message:        resp.Message,
		DurationMs:     resp.DurationMs,
	}
	entry.SetResults(names)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HistoryWriteTimeout)
	defer cancel()
	if err := s.deps.History.SaveSearch(writeCtx, entry); err != nil {
		logrus.WithError(err).WithField("request_id", resp.RequestID).Warn("save search history")
	}
}

func (s *Service) publish(evt Event) {
	if s.deps.Notifier == nil {
		return
	}
	evt.At = time.Now().UTC()
	s.deps.Notifier.Publish(evt)
}
