package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"ledger/internal/date"
	"ledger/internal/models"
	"ledger/internal/recurrence"
	"ledger/internal/services"
	"ledger/internal/store"
)

func TestCreateExpenseParsesBody(t *testing.T) {
	h := newTestHandler(t, Services{Transactions: stubTransactions{
		createFn: func(_ context.Context, actor services.Actor, kind models.TransactionKind, input services.TransactionInput) (models.Transaction, error) {
			if kind != models.KindExpense {
				t.Fatalf("unexpected kind: %s", kind)
			}
			if input.AmountMinor != 3050 || input.Date != date.MustParse("2025-03-02") || input.RecurrenceType != recurrence.Monthly {
				t.Fatalf("unexpected input: %#v", input)
			}
			if len(input.TagIDs) != 2 || input.RecurrenceEndDate == nil || *input.RecurrenceEndDate != date.MustParse("2025-12-31") {
				t.Fatalf("unexpected input: %#v", input)
			}
			return models.Transaction{ID: "e-1", Kind: kind, Amount: 3050, Date: input.Date}, nil
		},
	}})

	rr := serve(t, h, http.MethodPost, "/expenses", `{
		"title":"Internet","amount":"30.50","wallet_id":"w-1","category_id":"c-1","tag_ids":["t-1","t-2"],
		"date":"2025-03-02","is_recurring":true,"recurrence_type":"monthly","recurrence_end_date":"2025-12-31"
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"amount":"30.50"`) || !strings.Contains(rr.Body.String(), `"kind":"expense"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestCreateIncomeRejectsMalformedFields(t *testing.T) {
	h := newTestHandler(t, Services{Transactions: stubTransactions{
		createFn: func(context.Context, services.Actor, models.TransactionKind, services.TransactionInput) (models.Transaction, error) {
			t.Fatal("create must not run")
			return models.Transaction{}, nil
		},
	}})
	cases := []struct {
		body  string
		field string
	}{
		{`{"amount":"1.234","date":"2025-03-02"}`, "amount"},
		{`{"amount":"10.00","date":"02/03/2025"}`, "date"},
		{`{"amount":"10.00","date":"2025-03-02","recurrence_type":"hourly"}`, "recurrence_type"},
	}
	for _, tc := range cases {
		rr := serve(t, h, http.MethodPost, "/incomes", tc.body)
		if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), `"field":"`+tc.field+`"`) {
			t.Fatalf("%s: unexpected response %d: %s", tc.body, rr.Code, rr.Body.String())
		}
	}
}

func TestListIncomesBuildsFilter(t *testing.T) {
	h := newTestHandler(t, Services{Transactions: stubTransactions{
		listFn: func(_ context.Context, ownerID string, filter store.TransactionFilter) ([]models.Transaction, error) {
			if ownerID != "owner-1" || filter.Kind != models.KindIncome || filter.WalletID != "w-1" {
				t.Fatalf("unexpected filter: %#v", filter)
			}
			if filter.Recurring == nil || !*filter.Recurring {
				t.Fatalf("expected recurring filter")
			}
			if filter.From == nil || *filter.From != date.MustParse("2025-01-01") || filter.To != nil {
				t.Fatalf("unexpected range: %v %v", filter.From, filter.To)
			}
			if filter.Limit != 20 || filter.Offset != 0 {
				t.Fatalf("unexpected page: %d %d", filter.Limit, filter.Offset)
			}
			return nil, nil
		},
	}})

	rr := serve(t, h, http.MethodGet, "/incomes?wallet_id=w-1&is_recurring=true&start_date=2025-01-01&limit=20", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rr.Body.String())
	}

	rr = serve(t, h, http.MethodGet, "/incomes?is_recurring=maybe", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestProcessRecurringUsesAsOf(t *testing.T) {
	var got []date.Date
	h := newTestHandler(t, Services{Transactions: stubTransactions{
		processDueFn: func(_ context.Context, _ services.Actor, kind models.TransactionKind, asOf date.Date) (services.ProcessResult, error) {
			if kind != models.KindExpense {
				t.Fatalf("unexpected kind: %s", kind)
			}
			got = append(got, asOf)
			return services.ProcessResult{Created: 2}, nil
		},
	}})

	rr := serve(t, h, http.MethodPost, "/expenses/process-recurring", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"created":2`) {
		t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(t, h, http.MethodPost, "/expenses/process-recurring?as_of=2025-04-01", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(got) != 2 || got[0] != testToday || got[1] != date.MustParse("2025-04-01") {
		t.Fatalf("unexpected as-of dates: %v", got)
	}
}

func TestUpcomingSubscriptionsDefaultsToAWeek(t *testing.T) {
	var days []int
	h := newTestHandler(t, Services{Subscriptions: stubSubscriptions{
		upcomingFn: func(_ context.Context, _ string, d int) ([]services.SubscriptionView, error) {
			days = append(days, d)
			return nil, nil
		},
	}})

	if rr := serve(t, h, http.MethodGet, "/subscriptions/upcoming", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := serve(t, h, http.MethodGet, "/subscriptions/upcoming?days=30", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := serve(t, h, http.MethodGet, "/subscriptions/upcoming?days=-1", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(days) != 2 || days[0] != 7 || days[1] != 30 {
		t.Fatalf("unexpected windows: %v", days)
	}
}

func TestPauseSubscriptionInvalidTransition(t *testing.T) {
	h := newTestHandler(t, Services{Subscriptions: stubSubscriptions{
		pauseFn: func(context.Context, services.Actor, string) (services.SubscriptionView, error) {
			return services.SubscriptionView{}, services.ErrInvalidStatusTransition
		},
	}})
	rr := serve(t, h, http.MethodPost, "/subscriptions/s-1/pause", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestContributeGoalParsesAmount(t *testing.T) {
	h := newTestHandler(t, Services{Goals: stubGoals{
		contributeFn: func(_ context.Context, _ services.Actor, id string, amountMinor int64) (models.GoalView, error) {
			if id != "g-1" || amountMinor != 25000 {
				t.Fatalf("unexpected contribution %s %d", id, amountMinor)
			}
			return models.GoalView{}, services.ErrGoalCancelled
		},
	}})
	rr := serve(t, h, http.MethodPost, "/savings-goals/g-1/contribute", `{"amount":"250.00"}`)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "goal_cancelled") {
		t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
	}
}
