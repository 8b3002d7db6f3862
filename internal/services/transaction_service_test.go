package services

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/date"
	"ledger/internal/models"
	"ledger/internal/recurrence"
	"ledger/internal/store"
)

func expenseInput(walletID string, amount int64) TransactionInput {
	return TransactionInput{
		Title: "Groceries", AmountMinor: amount, WalletID: walletID, CategoryID: "cat-food",
		Date: date.MustParse("2025-01-10"),
	}
}

func incomeInput(walletID string, amount int64) TransactionInput {
	return TransactionInput{
		Title: "Salary", AmountMinor: amount, WalletID: walletID, CategoryID: "cat-salary",
		Date: date.MustParse("2025-01-01"),
	}
}

func TestTransactionLifecycleKeepsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := OwnerActor(testOwner)
	w := f.wallet(t, "USD", 10000)

	expense, err := f.transactions.Create(ctx, actor, models.KindExpense, expenseInput(w.ID, 3000))
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if f.balance(t, w.ID) != 7000 {
		t.Fatalf("expected 70.00, got %d", f.balance(t, w.ID))
	}
	income, err := f.transactions.Create(ctx, actor, models.KindIncome, incomeInput(w.ID, 5000))
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if f.balance(t, w.ID) != 12000 {
		t.Fatalf("expected 120.00, got %d", f.balance(t, w.ID))
	}
	if _, err := f.transactions.Update(ctx, actor, models.KindIncome, income.ID, incomeInput(w.ID, 8000)); err != nil {
		t.Fatalf("update income: %v", err)
	}
	if f.balance(t, w.ID) != 15000 {
		t.Fatalf("expected 150.00, got %d", f.balance(t, w.ID))
	}
	if _, err := f.transactions.Update(ctx, actor, models.KindExpense, expense.ID, expenseInput(w.ID, 6000)); err != nil {
		t.Fatalf("update expense: %v", err)
	}
	if f.balance(t, w.ID) != 12000 {
		t.Fatalf("expected 120.00, got %d", f.balance(t, w.ID))
	}
	if err := f.transactions.Delete(ctx, actor, models.KindIncome, income.ID); err != nil {
		t.Fatalf("delete income: %v", err)
	}
	if f.balance(t, w.ID) != 4000 {
		t.Fatalf("expected 40.00, got %d", f.balance(t, w.ID))
	}

	if got := len(f.state.historyFor(models.ActionCreate, "expense")); got != 1 {
		t.Fatalf("expected one expense create row, got %d", got)
	}
	updates := f.state.historyFor(models.ActionUpdate, "income")
	if len(updates) != 1 || updates[0].OldData == nil || updates[0].NewData == nil {
		t.Fatalf("expected before/after snapshots, got %#v", updates)
	}
	deletes := f.state.historyFor(models.ActionDelete, "income")
	if len(deletes) != 1 || deletes[0].NewData != nil {
		t.Fatalf("unexpected delete rows: %#v", deletes)
	}
}

func TestCreateRejectsCategoryOfOtherKind(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "USD", 10000)
	input := expenseInput(w.ID, 1000)
	input.CategoryID = "cat-salary"

	_, err := f.transactions.Create(context.Background(), OwnerActor(testOwner), models.KindExpense, input)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "category_id" || verr.Rule != "kind_mismatch" {
		t.Fatalf("expected kind mismatch, got %v", err)
	}
	if f.balance(t, w.ID) != 10000 || len(f.state.transactions) != 0 {
		t.Fatal("rejected record must leave no trace")
	}
}

func TestCreateAcceptsDualCategoryAndLinksTags(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "USD", 10000)
	input := expenseInput(w.ID, 1000)
	input.CategoryID = "cat-misc"
	input.TagIDs = []string{"tag-work", "tag-work"}

	created, err := f.transactions.Create(context.Background(), OwnerActor(testOwner), models.KindExpense, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if links := f.state.links[created.ID]; len(links) != 1 || links[0] != "tag-work" {
		t.Fatalf("unexpected tag links: %#v", links)
	}

	input.TagIDs = []string{"tag-unknown"}
	_, err = f.transactions.Create(context.Background(), OwnerActor(testOwner), models.KindExpense, input)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "tag_ids" {
		t.Fatalf("expected tag validation error, got %v", err)
	}
}

func TestCreateExpenseInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "USD", 1000)

	_, err := f.transactions.Create(context.Background(), OwnerActor(testOwner), models.KindExpense, expenseInput(w.ID, 3000))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if len(f.state.transactions) != 0 || len(f.state.historyFor(models.ActionCreate, "expense")) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestCreateComputesBaseAmount(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "RWF", 5000000)

	created, err := f.transactions.Create(context.Background(), OwnerActor(testOwner), models.KindExpense, expenseInput(w.ID, 1690000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Currency != "RWF" || created.AmountBase != 1000 {
		t.Fatalf("unexpected pricing: %s %s", created.Currency, created.AmountBase)
	}
}

func TestUpdateMovesRecordBetweenWallets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := OwnerActor(testOwner)
	first := f.wallet(t, "USD", 10000)
	second := f.wallet(t, "USD", 10000)

	expense, err := f.transactions.Create(ctx, actor, models.KindExpense, expenseInput(first.ID, 3000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.transactions.Update(ctx, actor, models.KindExpense, expense.ID, expenseInput(second.ID, 3000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.balance(t, first.ID) != 10000 || f.balance(t, second.ID) != 7000 {
		t.Fatalf("unexpected balances: %d / %d", f.balance(t, first.ID), f.balance(t, second.ID))
	}
}

func TestUpdateUnknownRecord(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "USD", 10000)
	_, err := f.transactions.Update(context.Background(), OwnerActor(testOwner), models.KindExpense, "missing", expenseInput(w.ID, 100))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func recurringIncome(walletID string) TransactionInput {
	input := incomeInput(walletID, 10000)
	input.IsRecurring = true
	input.RecurrenceType = recurrence.Monthly
	return input
}

func TestProcessDueIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := OwnerActor(testOwner)
	w := f.wallet(t, "USD", 0)

	template, err := f.transactions.Create(ctx, actor, models.KindIncome, recurringIncome(w.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if template.NextOccurrence == nil || *template.NextOccurrence != date.MustParse("2025-01-31") {
		t.Fatalf("unexpected next occurrence: %v", template.NextOccurrence)
	}

	asOf := date.MustParse("2025-02-01")
	result, err := f.transactions.ProcessDue(ctx, actor, models.KindIncome, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Created != 1 || len(result.Failed) != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}
	children := memTransactions{f.state}.children(template.ID)
	if len(children) != 1 {
		t.Fatalf("expected one occurrence, got %d", len(children))
	}
	child := children[0]
	if child.Title != "Salary (Recurring)" || child.Date != date.MustParse("2025-01-31") || child.IsRecurring {
		t.Fatalf("unexpected occurrence: %#v", child)
	}
	if f.balance(t, w.ID) != 20000 {
		t.Fatalf("expected 200.00, got %d", f.balance(t, w.ID))
	}
	stored := f.state.transactions[template.ID]
	if *stored.NextOccurrence != date.MustParse("2025-03-02") || *stored.LastProcessedOn != asOf {
		t.Fatalf("schedule not advanced: %#v", stored)
	}

	again, err := f.transactions.ProcessDue(ctx, actor, models.KindIncome, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Created != 0 || f.balance(t, w.ID) != 20000 {
		t.Fatalf("second run must create nothing: %#v", again)
	}

	later, err := f.transactions.ProcessDue(ctx, actor, models.KindIncome, date.MustParse("2025-03-02"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if later.Created != 1 || len(memTransactions{f.state}.children(template.ID)) != 2 {
		t.Fatalf("expected the March occurrence, got %#v", later)
	}
}

func TestRescheduledTemplateKeepsRecurring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := OwnerActor(testOwner)
	w := f.wallet(t, "USD", 0)

	template, err := f.transactions.Create(ctx, actor, models.KindIncome, recurringIncome(w.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.transactions.ProcessDue(ctx, actor, models.KindIncome, date.MustParse("2025-02-01")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	edit := recurringIncome(w.ID)
	end := date.MustParse("2025-12-31")
	edit.RecurrenceEndDate = &end
	updated, err := f.transactions.Update(ctx, actor, models.KindIncome, template.ID, edit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.NextOccurrence == nil || *updated.NextOccurrence != date.MustParse("2025-03-02") {
		t.Fatalf("reschedule must skip the materialized occurrence, got %v", updated.NextOccurrence)
	}

	for i, asOf := range []string{"2025-03-05", "2025-04-10"} {
		result, err := f.transactions.ProcessDue(ctx, actor, models.KindIncome, date.MustParse(asOf))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Created != 1 || len(result.Failed) != 0 {
			t.Fatalf("run %s: unexpected result %#v", asOf, result)
		}
		if got := len(memTransactions{f.state}.children(template.ID)); got != i+2 {
			t.Fatalf("run %s: expected %d occurrences, got %d", asOf, i+2, got)
		}
	}
	if next := f.state.transactions[template.ID].NextOccurrence; next == nil || *next != date.MustParse("2025-05-01") {
		t.Fatalf("schedule not advanced: %v", next)
	}
}

func TestProcessDueSkipsExistingOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := OwnerActor(testOwner)
	w := f.wallet(t, "USD", 0)

	template, err := f.transactions.Create(ctx, actor, models.KindIncome, recurringIncome(w.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.transactions.ProcessDue(ctx, actor, models.KindIncome, date.MustParse("2025-02-01")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stale := f.state.transactions[template.ID]
	first := date.MustParse("2025-01-31")
	stale.NextOccurrence = &first
	f.state.transactions[template.ID] = stale

	result, err := f.transactions.ProcessDue(ctx, actor, models.KindIncome, date.MustParse("2025-03-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Created != 1 || len(result.Failed) != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}
	children := memTransactions{f.state}.children(template.ID)
	if len(children) != 2 || f.balance(t, w.ID) != 30000 {
		t.Fatalf("expected the March occurrence only, got %d children and balance %d", len(children), f.balance(t, w.ID))
	}
}

func TestProcessDueReportsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := OwnerActor(testOwner)
	w := f.wallet(t, "USD", 10000)
	input := expenseInput(w.ID, 6000)
	input.IsRecurring = true
	input.RecurrenceType = recurrence.Weekly

	template, err := f.transactions.Create(ctx, actor, models.KindExpense, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := f.transactions.ProcessDue(ctx, actor, models.KindExpense, date.MustParse("2025-01-20"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Created != 0 || len(result.Failed) != 1 || result.Failed[0].ID != template.ID {
		t.Fatalf("expected one failure, got %#v", result)
	}
	if f.balance(t, w.ID) != 4000 {
		t.Fatalf("failed occurrence must not move money, got %d", f.balance(t, w.ID))
	}
	if f.state.transactions[template.ID].LastProcessedOn != nil {
		t.Fatal("failed occurrence must not mark the template processed")
	}
}

func TestRecurringTemplateEndingBeforeFirstOccurrence(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "USD", 0)
	input := recurringIncome(w.ID)
	end := date.MustParse("2025-01-20")
	input.RecurrenceEndDate = &end

	created, err := f.transactions.Create(context.Background(), OwnerActor(testOwner), models.KindIncome, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.IsRecurring || created.NextOccurrence != nil {
		t.Fatalf("expected terminal schedule, got %#v", created)
	}
}

func TestTransactionStatsInBase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, "RWF", 0)
	if _, err := f.transactions.Create(ctx, OwnerActor(testOwner), models.KindIncome, incomeInput(w.ID, 3380000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := f.transactions.Stats(ctx, testOwner, models.KindIncome, date.MustParse("2025-01-15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 2000 || stats.ThisMonth != 2000 || stats.ThisYear != 2000 || stats.Count != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestListRejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	from, to := date.MustParse("2025-02-01"), date.MustParse("2025-01-01")
	_, err := f.transactions.List(context.Background(), testOwner, storeFilter(&from, &to))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func storeFilter(from, to *date.Date) store.TransactionFilter {
	return store.TransactionFilter{From: from, To: to}
}
