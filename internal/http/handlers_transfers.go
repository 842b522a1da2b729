package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"moneta/internal/core"
	"moneta/internal/services"
)

type transferRequest struct {
	SourceID            string `json:"source_id"`
	DestinationSourceID string `json:"destination_source_id"`
	Amount              string `json:"amount"`
	Date                string `json:"date"`
	Notes               string `json:"notes,omitempty"`
}

func (req transferRequest) toInput() (services.TransferInput, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return services.TransferInput{}, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return services.TransferInput{}, err
	}
	return services.TransferInput{
		SourceID:            req.SourceID,
		DestinationSourceID: req.DestinationSourceID,
		Amount:              amount,
		Date:                date,
		Notes:               req.Notes,
	}, nil
}

type transferUpdateRequest struct {
	Amount *string `json:"amount,omitempty"`
	Date   *string `json:"date,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

func (req transferUpdateRequest) toInput() (services.TransferUpdateInput, error) {
	var in services.TransferUpdateInput
	if req.Amount != nil {
		amount, err := core.ParseAmount(*req.Amount)
		if err != nil {
			return services.TransferUpdateInput{}, err
		}
		in.Amount = &amount
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			return services.TransferUpdateInput{}, err
		}
		in.Date = &date
	}
	in.Notes = req.Notes
	return in, nil
}

type transferResponse struct {
	ID                  string          `json:"id"`
	Date                string          `json:"date"`
	Amount              decimal.Decimal `json:"amount"`
	Notes               string          `json:"notes,omitempty"`
	SourceID            string          `json:"source_id"`
	DestinationSourceID string          `json:"destination_source_id"`
}

func renderTransfer(t core.Transfer) transferResponse {
	return transferResponse{
		ID:                  t.ID,
		Date:                t.Date.String(),
		Amount:              t.Amount,
		Notes:               t.Notes,
		SourceID:            t.SourceID,
		DestinationSourceID: t.DestinationSourceID,
	}
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(r, w, err)
		return
	}
	tr, err := s.transfers.Create(r.Context(), ownerFrom(r), in)
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusCreated, renderTransfer(tr))
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	tr, err := s.transfers.Get(r.Context(), ownerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderTransfer(tr))
}

func (s *Server) handleUpdateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(r, w, err)
		return
	}
	tr, err := s.transfers.Update(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusOK, renderTransfer(tr))
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	if err := s.transfers.Delete(r.Context(), ownerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	w.WriteHeader(http.StatusNoContent)
}
