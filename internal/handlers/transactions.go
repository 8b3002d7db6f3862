package handlers

import (
	"net/http"

	"ledger/internal/models"
	"ledger/internal/recurrence"
	"ledger/internal/services"
	"ledger/internal/store"

	"github.com/go-chi/chi/v5"
)

type transactionRequest struct {
	Title             string   `json:"title"`
	Amount            string   `json:"amount"`
	WalletID          string   `json:"wallet_id"`
	ProjectID         *string  `json:"project_id"`
	CategoryID        string   `json:"category_id"`
	TagIDs            []string `json:"tag_ids"`
	Date              string   `json:"date"`
	Description       string   `json:"description"`
	Notes             string   `json:"notes"`
	Attachment        *string  `json:"attachment"`
	IsRecurring       bool     `json:"is_recurring"`
	RecurrenceType    string   `json:"recurrence_type"`
	RecurrenceEndDate *string  `json:"recurrence_end_date"`
}

func (req transactionRequest) input() (services.TransactionInput, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return services.TransactionInput{}, err
	}
	day, err := parseDate("date", req.Date)
	if err != nil {
		return services.TransactionInput{}, err
	}
	end, err := parseOptionalDate("recurrence_end_date", req.RecurrenceEndDate)
	if err != nil {
		return services.TransactionInput{}, err
	}
	rt, err := recurrence.ParseType(req.RecurrenceType)
	if err != nil {
		return services.TransactionInput{}, invalidField("recurrence_type", "unknown")
	}
	return services.TransactionInput{
		Title:             req.Title,
		AmountMinor:       amount,
		WalletID:          req.WalletID,
		ProjectID:         req.ProjectID,
		CategoryID:        req.CategoryID,
		TagIDs:            req.TagIDs,
		Date:              day,
		Description:       req.Description,
		Notes:             req.Notes,
		Attachment:        req.Attachment,
		IsRecurring:       req.IsRecurring,
		RecurrenceType:    rt,
		RecurrenceEndDate: end,
	}, nil
}

// transactionRoutes mounts the same CRUD surface for incomes and expenses.
func (h *Handler) transactionRoutes(kind models.TransactionKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.listTransactions(kind))
		r.Post("/", h.createTransaction(kind))
		r.Post("/process-recurring", h.processRecurring(kind))
		r.Get("/stats", h.transactionStats(kind))
		r.Get("/{id}", h.getTransaction(kind))
		r.Put("/{id}", h.updateTransaction(kind))
		r.Delete("/{id}", h.deleteTransaction(kind))
	}
}

func (h *Handler) createTransaction(kind models.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var req transactionRequest
		if !decode(w, r, &req) {
			return
		}
		input, err := req.input()
		if err != nil {
			respondServiceError(w, err)
			return
		}
		created, err := h.transactions.Create(r.Context(), actor, kind, input)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, created)
	}
}

func (h *Handler) listTransactions(kind models.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		filter, err := transactionFilter(r, kind)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		rows, err := h.transactions.List(r.Context(), actor.OwnerID, filter)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, nonNil(rows))
	}
}

func transactionFilter(r *http.Request, kind models.TransactionKind) (store.TransactionFilter, error) {
	q := r.URL.Query()
	filter := store.TransactionFilter{
		Kind:       kind,
		WalletID:   q.Get("wallet_id"),
		ProjectID:  q.Get("project_id"),
		CategoryID: q.Get("category_id"),
	}
	var err error
	if filter.Recurring, err = queryBool(r, "is_recurring"); err != nil {
		return filter, err
	}
	if filter.From, err = queryDate(r, "start_date"); err != nil {
		return filter, err
	}
	if filter.To, err = queryDate(r, "end_date"); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(r, "limit", 100); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *Handler) getTransaction(kind models.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		row, err := h.transactions.Get(r.Context(), actor.OwnerID, kind, chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, row)
	}
}

func (h *Handler) updateTransaction(kind models.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		var req transactionRequest
		if !decode(w, r, &req) {
			return
		}
		input, err := req.input()
		if err != nil {
			respondServiceError(w, err)
			return
		}
		updated, err := h.transactions.Update(r.Context(), actor, kind, chi.URLParam(r, "id"), input)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, updated)
	}
}

func (h *Handler) deleteTransaction(kind models.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		if err := h.transactions.Delete(r.Context(), actor, kind, chi.URLParam(r, "id")); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) processRecurring(kind models.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		asOf, err := h.asOf(r)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		result, err := h.transactions.ProcessDue(r.Context(), actor, kind, asOf)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) transactionStats(kind models.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		stats, err := h.transactions.Stats(r.Context(), actor.OwnerID, kind, h.today())
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, stats)
	}
}
