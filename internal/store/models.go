package store

import (
	"encoding/json"
	"strings"
	"time"
)

// CreditLedger is the per-user credit balance.
type CreditLedger struct {
	UserID                string `gorm:"primaryKey;size:128"`
	CurrentCredits        int    `gorm:"not null;check:current_credits >= 0"`
	TotalPurchasedCredits int    `gorm:"not null;default:0"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Ledger transaction kinds.
const (
	TransactionProvision = "provision"
	TransactionDebit     = "debit"
	TransactionCredit    = "credit"
)

// LedgerTransaction records one balance mutation. Rows are only ever inserted.
type LedgerTransaction struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       string    `gorm:"size:128;index" json:"user_id"`
	Kind         string    `gorm:"size:16" json:"kind"`
	Amount       int       `json:"amount"`
	Reason       string    `gorm:"size:64" json:"reason"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ValidationLog is the persisted form of a resolver anomaly. Rows are never updated.
type ValidationLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Domain    string    `gorm:"size:255;index" json:"domain"`
	Source    string    `gorm:"size:16;index" json:"source"`
	Status    string    `gorm:"size:32" json:"status"`
	Message   string    `gorm:"type:text" json:"message,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// SearchHistory is one completed discovery request for a user.
type SearchHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RequestID      string    `gorm:"size:36;uniqueIndex" json:"request_id"`
	UserID         string    `gorm:"size:128;index" json:"user_id"`
	Pattern        string    `gorm:"size:255" json:"pattern"`
	Operation      string    `gorm:"size:32" json:"operation"`
	CandidateCount int       `json:"candidate_count"`
	AvailableCount int       `json:"available_count"`
	Message        string    `gorm:"size:255" json:"message,omitempty"`
	ResultsJSON    string    `gorm:"type:text" json:"-"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SetResults stores the returned domain names as JSON.
func (h *SearchHistory) SetResults(names []string) {
	if names == nil {
		h.ResultsJSON = "[]"
		return
	}
	payload, _ := json.Marshal(names)
	h.ResultsJSON = string(payload)
}

// Results returns the stored domain names.
func (h *SearchHistory) Results() []string {
	if strings.TrimSpace(h.ResultsJSON) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(h.ResultsJSON), &out); err != nil {
		return nil
	}
	return out
}
