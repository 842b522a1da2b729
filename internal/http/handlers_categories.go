package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"moneta/internal/core"
)

type categoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type subCategoryRequest struct {
	Name string `json:"name"`
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type subCategoryResponse struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

func renderCategory(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Type: string(c.Type)}
}

func renderSubCategory(sc core.SubCategory) subCategoryResponse {
	return subCategoryResponse{ID: sc.ID, CategoryID: sc.CategoryID, Name: sc.Name}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	cat, err := s.categories.Create(r.Context(), ownerFrom(r), req.Name, core.CategoryType(req.Type))
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusCreated, renderCategory(cat))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(r, w, err)
		return
	}
	resp := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		resp = append(resp, renderCategory(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	cat, err := s.categories.Update(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), req.Name, core.CategoryType(req.Type))
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusOK, renderCategory(cat))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.categories.Delete(r.Context(), ownerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateSubCategory(w http.ResponseWriter, r *http.Request) {
	var req subCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	sub, err := s.categories.CreateSub(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusCreated, renderSubCategory(sub))
}

func (s *Server) handleListSubCategories(w http.ResponseWriter, r *http.Request) {
	subs, err := s.categories.ListSubs(r.Context(), ownerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	resp := make([]subCategoryResponse, 0, len(subs))
	for _, sc := range subs {
		resp = append(resp, renderSubCategory(sc))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateSubCategory(w http.ResponseWriter, r *http.Request) {
	var req subCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}
	sub, err := s.categories.UpdateSub(r.Context(), ownerFrom(r), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	writeJSON(w, http.StatusOK, renderSubCategory(sub))
}

func (s *Server) handleDeleteSubCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.categories.DeleteSub(r.Context(), ownerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(r, w, err)
		return
	}
	s.invalidate(ownerFrom(r))
	w.WriteHeader(http.StatusNoContent)
}
