package handlers

import (
	"net/http"

	"ledger/internal/models"
	"ledger/internal/services"

	"github.com/go-chi/chi/v5"
)

type categoryRequest struct {
	Name        string  `json:"name"`
	Kind        string  `json:"category_type"`
	ParentID    *string `json:"parent_id"`
	Color       string  `json:"color"`
	Icon        string  `json:"icon"`
	Description string  `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (req categoryRequest) input() (services.CategoryInput, error) {
	kind, err := models.ParseCategoryKind(req.Kind)
	if err != nil {
		return services.CategoryInput{}, invalidField("category_type", "unknown")
	}
	return services.CategoryInput{
		Name:        req.Name,
		Kind:        kind,
		ParentID:    req.ParentID,
		Color:       req.Color,
		Icon:        req.Icon,
		Description: req.Description,
		IsActive:    req.IsActive,
	}, nil
}

// queryKind reads an optional income/expense filter.
func queryKind(r *http.Request) (models.TransactionKind, error) {
	raw := r.URL.Query().Get("kind")
	if raw == "" {
		return "", nil
	}
	kind, err := models.ParseTransactionKind(raw)
	if err != nil {
		return "", invalidField("kind", "unknown")
	}
	return kind, nil
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if !decode(w, r, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	category, err := h.categories.Create(r.Context(), actor, input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	kind, err := queryKind(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	categories, err := h.categories.List(r.Context(), actor.OwnerID, kind, r.URL.Query().Get("active") == "true")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(categories))
}

func (h *Handler) CategoryTree(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	kind, err := queryKind(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	tree, err := h.categories.Tree(r.Context(), actor.OwnerID, kind)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(tree))
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	category, err := h.categories.Get(r.Context(), actor.OwnerID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, category)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if !decode(w, r, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	category, err := h.categories.Update(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, category)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.categories.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tagRequest struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	IsActive *bool  `json:"is_active"`
}

func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req tagRequest
	if !decode(w, r, &req) {
		return
	}
	tag, err := h.tags.Create(r.Context(), actor, services.TagInput{Name: req.Name, Color: req.Color, IsActive: req.IsActive})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tag)
}

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	tags, err := h.tags.List(r.Context(), actor.OwnerID, r.URL.Query().Get("active") == "true")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(tags))
}

func (h *Handler) GetTag(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	tag, err := h.tags.Get(r.Context(), actor.OwnerID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tag)
}

func (h *Handler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req tagRequest
	if !decode(w, r, &req) {
		return
	}
	tag, err := h.tags.Update(r.Context(), actor, chi.URLParam(r, "id"), services.TagInput{Name: req.Name, Color: req.Color, IsActive: req.IsActive})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tag)
}

func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.tags.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
