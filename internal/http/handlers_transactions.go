package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"moneta/internal/core"
	"moneta/internal/services"
)

type transactionRequest struct {
	Date                 string `json:"date"`
	Type                 string `json:"type"`
	CategoryID           string `json:"category_id,omitempty"`
	SubCategoryID        string `json:"subcategory_id,omitempty"`
	SourceID             string `json:"source_id"`
	Amount               string `json:"amount"`
	Notes                string `json:"notes,omitempty"`
	Counterparty         string `json:"counterparty,omitempty"`
	RelatedTransactionID string `json:"related_transaction_id,omitempty"`
}

func (req transactionRequest) toInput() (services.TransactionInput, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return services.TransactionInput{}, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return services.TransactionInput{}, err
	}
	return services.TransactionInput{
		Date:                 date,
		Type:                 core.TransactionType(req.Type),
		CategoryID:           req.CategoryID,
		SubCategoryID:        req.SubCategoryID,
		SourceID:             req.SourceID,
		Amount:               amount,
		Notes:                req.Notes,
		Counterparty:         req.Counterparty,
		RelatedTransactionID: req.RelatedTransactionID,
	}, nil
}

type transactionResponse struct {
	ID                   string          `json:"id"`
	Date                 string          `json:"date"`
	Type                 string          `json:"type"`
	CategoryID           string          `json:"category_id,omitempty"`
	SubCategoryID        string          `json:"subcategory_id,omitempty"`
	SourceID             string          `json:"source_id"`
	Amount               decimal.Decimal `json:"amount"`
	Notes                string          `json:"notes,omitempty"`
	Counterparty         string          `json:"counterparty,omitempty"`
	RelatedTransactionID string          `json:"related_transaction_id,omitempty"`
	TransferID           string          `json:"transfer_id,omitempty"`
	TransferLeg          string          `json:"transfer_leg,omitempty"`
}

func renderTransaction(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:                   t.ID,
		Date:                 t.Date.String(),
		Type:                 string(t.Type),
		CategoryID:           t.CategoryID,
		SubCategoryID:        t.SubCategoryID,
		SourceID:             t.SourceID,
		Amount:               t.Amount,
		Notes:                t.Notes,
		Counterparty:         t.Counterparty,
		RelatedTransactionID: t.RelatedTransactionID,
		TransferID:           t.TransferID,
		TransferLeg:          string(t.TransferLeg),
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(r, w, err)
		return
	}
	t, err := s.transactions.Create(r.Context(), ownerFrom(r), in)
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusCreated, renderTransaction(t))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactions.Get(r.Context(), ownerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderTransaction(t))
}

// handleListTransactions lists an owner's transactions, optionally filtered
// by a ?month=YYYY-MM query.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.List(r.Context(), ownerFrom(r), r.URL.Query().Get("month"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	resp := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		resp = append(resp, renderTransaction(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(r, w, err)
		return
	}
	t, err := s.transactions.Update(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusOK, renderTransaction(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), ownerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	w.WriteHeader(http.StatusNoContent)
}
