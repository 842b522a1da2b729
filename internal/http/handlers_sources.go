package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"moneta/internal/core"
	"moneta/internal/services"
)

type sourceRequest struct {
	Name                 string `json:"name"`
	Type                 string `json:"type"`
	Currency             string `json:"currency"`
	InitialBalance       string `json:"initial_balance,omitempty"`
	Notes                string `json:"notes,omitempty"`
	CreditLimit          string `json:"credit_limit,omitempty"`
	InterestRate         string `json:"interest_rate,omitempty"`
	BillingCycleStartDay int    `json:"billing_cycle_start_day,omitempty"`
}

func (req sourceRequest) toInput() (services.SourceInput, error) {
	in := services.SourceInput{
		Name:                 req.Name,
		Type:                 core.SourceType(req.Type),
		Currency:             req.Currency,
		Notes:                req.Notes,
		BillingCycleStartDay: req.BillingCycleStartDay,
	}
	var err error
	if in.InitialBalance, err = parseBalance("initial_balance", req.InitialBalance); err != nil {
		return services.SourceInput{}, err
	}
	if in.CreditLimit, err = parseBalance("credit_limit", req.CreditLimit); err != nil {
		return services.SourceInput{}, err
	}
	if in.InterestRate, err = parseBalance("interest_rate", req.InterestRate); err != nil {
		return services.SourceInput{}, err
	}
	return in, nil
}

// parseBalance accepts any decimal (including zero) with at most two
// fractional digits. Empty means zero.
func parseBalance(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, core.Validationf(field, "must be a decimal")
	}
	if !d.Equal(d.Round(2)) {
		return decimal.Zero, core.Validationf(field, "at most two fractional digits")
	}
	return d, nil
}

type creditCardResponse struct {
	CreditLimit          decimal.Decimal  `json:"credit_limit"`
	InterestRate         decimal.Decimal  `json:"interest_rate"`
	BillingCycleStartDay int              `json:"billing_cycle_start_day"`
	AvailableCredit      *decimal.Decimal `json:"available_credit,omitempty"`
}

type sourceResponse struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Type           string              `json:"type"`
	Currency       string              `json:"currency"`
	InitialBalance decimal.Decimal     `json:"initial_balance"`
	CurrentBalance decimal.Decimal     `json:"current_balance"`
	Notes          string              `json:"notes,omitempty"`
	CreditCard     *creditCardResponse `json:"credit_card,omitempty"`
}

func renderSource(s core.Source) sourceResponse {
	resp := sourceResponse{
		ID:             s.ID,
		Name:           s.Name,
		Type:           string(s.Type),
		Currency:       s.Currency,
		InitialBalance: s.InitialBalance,
		CurrentBalance: s.CurrentBalance,
		Notes:          s.Notes,
	}
	if s.CreditCard != nil {
		cc := &creditCardResponse{
			CreditLimit:          s.CreditCard.CreditLimit,
			InterestRate:         s.CreditCard.InterestRate,
			BillingCycleStartDay: s.CreditCard.BillingCycleStartDay,
		}
		if avail, ok := s.AvailableCredit(); ok {
			cc.AvailableCredit = &avail
		}
		resp.CreditCard = cc
	}
	return resp
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(r, w, err)
		return
	}
	src, err := s.sources.Create(r.Context(), ownerFrom(r), in)
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusCreated, renderSource(src))
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.sources.Get(r.Context(), ownerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderSource(src))
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sources.List(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(r, w, err)
		return
	}
	resp := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		resp = append(resp, renderSource(src))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(r, w, err)
		return
	}
	src, err := s.sources.Update(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusOK, renderSource(src))
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.sources.Delete(r.Context(), ownerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	w.WriteHeader(http.StatusNoContent)
}
