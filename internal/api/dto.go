package api

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"domainflip/internal/availability"
	"domainflip/internal/discovery"
	"domainflip/internal/ledger"
	"domainflip/internal/search"
	"domainflip/internal/store"
)

// SearchRequest is the body of search and suggest calls. Keyword is accepted as an alias of Pattern.
type SearchRequest struct {
	Pattern            string `json:"pattern"`
	Keyword            string `json:"keyword"`
	IncludeUnavailable bool   `json:"include_unavailable"`
}

func (r SearchRequest) pattern() string {
	if strings.TrimSpace(r.Pattern) != "" {
		return r.Pattern
	}
	return r.Keyword
}

// DomainDTO is the API representation of a resolved candidate.
type DomainDTO struct {
	Name          string           `json:"name"`
	BaseName      string           `json:"base_name"`
	TLD           string           `json:"tld"`
	Available     bool             `json:"available"`
	Price         *decimal.Decimal `json:"price"`
	FlipScore     *int             `json:"flip_score,omitempty"`
	TrendStrength *int             `json:"trend_strength,omitempty"`
	PurchaseURL   string           `json:"purchase_url,omitempty"`
}

// SearchResponse holds ranked domains and request metadata.
type SearchResponse struct {
	RequestID        string              `json:"request_id"`
	Operation        discovery.Operation `json:"operation"`
	Domains          []DomainDTO         `json:"domains"`
	Message          string              `json:"message,omitempty"`
	Candidates       int                 `json:"candidates"`
	Available        int                 `json:"available"`
	RemainingCredits *int                `json:"remaining_credits,omitempty"`
	DurationMs       int64               `json:"duration_ms"`
}

// InsufficientCreditsResponse is returned with 402.
type InsufficientCreditsResponse struct {
	Error            string `json:"error"`
	AvailableCredits int    `json:"available_credits"`
	RequiredCredits  int    `json:"required_credits"`
}

// ScoreResponse is a standalone score preview.
type ScoreResponse struct {
	Domain        string `json:"domain"`
	FlipScore     int    `json:"flip_score"`
	TrendStrength int    `json:"trend_strength"`
}

// ConfigResponse describes the active discovery settings.
type ConfigResponse struct {
	TLDs           []string     `json:"tlds"`
	MaxCandidates  int          `json:"max_candidates"`
	MaxResults     int          `json:"max_results"`
	SimulationMode bool         `json:"simulation_mode"`
	AIEnabled      bool         `json:"ai_enabled"`
	LedgerBackend  string       `json:"ledger_backend"`
	Costs          search.Costs `json:"costs"`
}

// CreditsResponse reports the caller's balance.
type CreditsResponse struct {
	ledger.Balance
	Admin        bool                      `json:"admin"`
	Transactions []store.LedgerTransaction `json:"transactions,omitempty"`
}

// GrantRequest adds credits to a user.
type GrantRequest struct {
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// ValidationLogsResponse is a page of resolver anomalies.
type ValidationLogsResponse struct {
	Items []store.ValidationLog `json:"items"`
	Total int64                 `json:"total"`
}

// HistoryDTO is one past search.
type HistoryDTO struct {
	RequestID      string    `json:"request_id"`
	Pattern        string    `json:"pattern"`
	Operation      string    `json:"operation"`
	CandidateCount int       `json:"candidate_count"`
	AvailableCount int       `json:"available_count"`
	Message        string    `json:"message,omitempty"`
	Results        []string  `json:"results"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryResponse is a page of past searches.
type HistoryResponse struct {
	Items []HistoryDTO `json:"items"`
	Total int64        `json:"total"`
}

// HistoryFromModel converts a stored search into its API form.
func HistoryFromModel(model store.SearchHistory) HistoryDTO {
	results := model.Results()
	if results == nil {
		results = []string{}
	}
	return HistoryDTO{
		RequestID:      model.RequestID,
		Pattern:        model.Pattern,
		Operation:      model.Operation,
		CandidateCount: model.CandidateCount,
		AvailableCount: model.AvailableCount,
		Message:        model.Message,
		Results:        results,
		DurationMs:     model.DurationMs,
		CreatedAt:      model.CreatedAt,
	}
}

func (s *Server) toSearchResponse(ctx context.Context, resp search.Response) SearchResponse {
	out := SearchResponse{
		RequestID:  resp.RequestID,
		Operation:  resp.Operation,
		Domains:    make([]DomainDTO, 0, len(resp.Domains)),
		Message:    resp.Message,
		Candidates: resp.Candidates,
		Available:  resp.Available,
		DurationMs: resp.DurationMs,
	}
	if resp.Outcome.Status == ledger.StatusOK {
		remaining := resp.Outcome.NewBalance
		out.RemainingCredits = &remaining
	}
	for _, record := range resp.Domains {
		out.Domains = append(out.Domains, s.toDomainDTO(ctx, record))
	}
	return out
}

func (s *Server) toDomainDTO(ctx context.Context, record availability.Record) DomainDTO {
	dto := DomainDTO{
		Name:          record.Name,
		BaseName:      record.BaseName,
		TLD:           record.TLD,
		Available:     record.Available,
		Price:         record.Price,
		FlipScore:     record.FlipScore,
		TrendStrength: record.TrendStrength,
	}
	if record.Available {
		dto.PurchaseURL = s.purchaseURL(ctx, record.Name)
	}
	return dto
}
