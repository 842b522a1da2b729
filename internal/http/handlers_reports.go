package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"moneta/internal/core"
)

type balanceResponse struct {
	SourceID        string           `json:"source_id"`
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	Currency        string           `json:"currency"`
	CurrentBalance  decimal.Decimal  `json:"current_balance"`
	AvailableCredit *decimal.Decimal `json:"available_credit,omitempty"`
}

type outstandingResponse struct {
	TransactionID string          `json:"transaction_id"`
	Counterparty  string          `json:"counterparty"`
	Date          string          `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Repaid        decimal.Decimal `json:"repaid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	Status        string          `json:"status"`
}

type monthSummaryResponse struct {
	Month        string          `json:"month"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Net          decimal.Decimal `json:"net"`
	Transactions int             `json:"transactions"`
}

type overviewResponse struct {
	Balances  []balanceResponse      `json:"balances"`
	Lending   []outstandingResponse  `json:"lending"`
	Borrowing []outstandingResponse  `json:"borrowing"`
	Months    []monthSummaryResponse `json:"months"`
}

func renderBalances(balances []core.SourceBalance) []balanceResponse {
	resp := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, balanceResponse{
			SourceID:        b.SourceID,
			Name:            b.Name,
			Type:            string(b.Type),
			Currency:        b.Currency,
			CurrentBalance:  b.CurrentBalance,
			AvailableCredit: b.AvailableCredit,
		})
	}
	return resp
}

func renderOutstanding(entries []core.OutstandingEntry) []outstandingResponse {
	resp := make([]outstandingResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, outstandingResponse{
			TransactionID: e.TransactionID,
			Counterparty:  e.Counterparty,
			Date:          e.Date.String(),
			Amount:        e.Amount,
			Repaid:        e.Repaid,
			Outstanding:   e.Outstanding,
			Status:        string(e.Status),
		})
	}
	return resp
}

func renderMonths(months []core.MonthSummary) []monthSummaryResponse {
	resp := make([]monthSummaryResponse, 0, len(months))
	for _, m := range months {
		resp = append(resp, monthSummaryResponse{
			Month:        m.Month,
			Income:       m.Income,
			Expense:      m.Expense,
			Net:          m.Income.Sub(m.Expense),
			Transactions: m.Transactions,
		})
	}
	return resp
}

func (s *Server) handleSourceBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.reports.SourceBalances(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderBalances(balances))
}

func (s *Server) handleLendingOutstanding(w http.ResponseWriter, r *http.Request) {
	entries, err := s.reports.LendingOutstanding(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderOutstanding(entries))
}

func (s *Server) handleBorrowingOutstanding(w http.ResponseWriter, r *http.Request) {
	entries, err := s.reports.BorrowingOutstanding(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderOutstanding(entries))
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	months, err := s.reports.MonthlySummary(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderMonths(months))
}

// handleOverview serves the combined dashboard payload. Results are cached
// per owner; every mutation handler drops the owner's entry.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if cached, ok := s.overviewCache.Get(owner); ok {
		writeJSON(w, http.StatusOK, renderOverview(cached))
		return
	}
	ov, err := s.reports.Overview(r.Context(), owner)
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.overviewCache.Set(owner, ov)
	writeJSON(w, http.StatusOK, renderOverview(ov))
}

func renderOverview(ov core.Overview) overviewResponse {
	return overviewResponse{
		Balances:  renderBalances(ov.Balances),
		Lending:   renderOutstanding(ov.Lending),
		Borrowing: renderOutstanding(ov.Borrowing),
		Months:    renderMonths(ov.Months),
	}
}
