package models

import (
	"time"

	"ledger/internal/date"
	"ledger/internal/money"
	"ledger/internal/recurrence"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code       string              `db:"code" json:"code"`
	Name       string              `db:"name" json:"name"`
	Symbol     string              `db:"symbol" json:"symbol"`
	RateToBase decimal.NullDecimal `db:"exchange_rate_to_base" json:"exchange_rate_to_base"`
	IsDefault  bool                `db:"is_default" json:"is_default"`
	IsActive   bool                `db:"is_active" json:"is_active"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`
}

type WalletType string

const (
	WalletSavings     WalletType = "savings"
	WalletCurrent     WalletType = "current"
	WalletCash        WalletType = "cash"
	WalletMobileMoney WalletType = "mobile_money"
	WalletCreditCard  WalletType = "credit_card"
	WalletInvestment  WalletType = "investment"
	WalletOther       WalletType = "other"
)

func (t WalletType) Valid() bool {
	switch t {
	case WalletSavings, WalletCurrent, WalletCash, WalletMobileMoney, WalletCreditCard, WalletInvestment, WalletOther:
		return true
	}
	return false
}

type Wallet struct {
	ID          string       `db:"id" json:"id"`
	OwnerID     string       `db:"owner_id" json:"-"`
	Name        string       `db:"name" json:"name"`
	Type        WalletType   `db:"wallet_type" json:"wallet_type"`
	Currency    string       `db:"currency" json:"currency"`
	Balance     money.Amount `db:"balance" json:"balance"`
	BalanceBase money.Amount `db:"balance_base" json:"balance_base"`
	Description string       `db:"description" json:"description"`
	IsActive    bool         `db:"is_active" json:"is_active"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

type Category struct {
	ID          string       `db:"id" json:"id"`
	OwnerID     string       `db:"owner_id" json:"-"`
	Name        string       `db:"name" json:"name"`
	Kind        CategoryKind `db:"category_type" json:"category_type"`
	ParentID    *string      `db:"parent_id" json:"parent_id"`
	Color       string       `db:"color" json:"color"`
	Icon        string       `db:"icon" json:"icon"`
	Description string       `db:"description" json:"description"`
	IsActive    bool         `db:"is_active" json:"is_active"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// CategoryNode is a category with its descendants.
type CategoryNode struct {
	Category
	Children []CategoryNode `json:"children"`
}

type Tag struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Transaction is an income or an expense. Kind decides the sign of its
// effect on the wallet.
type Transaction struct {
	ID                string           `db:"id" json:"id"`
	OwnerID           string           `db:"owner_id" json:"-"`
	Kind              TransactionKind  `db:"kind" json:"kind"`
	Title             string           `db:"title" json:"title"`
	Amount            money.Amount     `db:"amount" json:"amount"`
	AmountBase        money.Amount     `db:"amount_base" json:"amount_base"`
	Currency          string           `db:"currency" json:"currency"`
	WalletID          string           `db:"wallet_id" json:"wallet_id"`
	ProjectID         *string          `db:"project_id" json:"project_id"`
	CategoryID        string           `db:"category_id" json:"category_id"`
	Date              date.Date        `db:"date" json:"date"`
	Description       string           `db:"description" json:"description"`
	Notes             string           `db:"notes" json:"notes"`
	Attachment        *string          `db:"attachment" json:"attachment"`
	IsRecurring       bool             `db:"is_recurring" json:"is_recurring"`
	RecurrenceType    recurrence.Type  `db:"recurrence_type" json:"recurrence_type"`
	RecurrenceEndDate *date.Date       `db:"recurrence_end_date" json:"recurrence_end_date"`
	NextOccurrence    *date.Date       `db:"next_occurrence" json:"next_occurrence"`
	LastProcessedOn   *date.Date       `db:"last_processed_on" json:"last_processed_on"`
	SourceID          *string          `db:"source_id" json:"source_id"`
	OccurrenceDate    *date.Date       `db:"occurrence_date" json:"occurrence_date"`
	SubscriptionID    *string          `db:"subscription_id" json:"subscription_id"`
	CreatedBy         string           `db:"created_by" json:"created_by"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
	TagIDs            []string         `db:"-" json:"tag_ids"`
}

// Delta is the signed balance effect of the record on its wallet.
func (t Transaction) Delta() int64 {
	return t.Kind.Sign() * int64(t.Amount)
}

func (t Transaction) Schedule() recurrence.Schedule {
	return recurrence.Schedule{
		Recurring: t.IsRecurring,
		Type:      t.RecurrenceType,
		Start:     t.Date,
		Next:      t.NextOccurrence,
		End:       t.RecurrenceEndDate,
	}
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type Subscription struct {
	ID               string             `db:"id" json:"id"`
	OwnerID          string             `db:"owner_id" json:"-"`
	Name             string             `db:"name" json:"name"`
	Amount           money.Amount       `db:"amount" json:"amount"`
	Currency         string             `db:"currency" json:"currency"`
	BillingCycle     recurrence.Cycle   `db:"billing_cycle" json:"billing_cycle"`
	CategoryID       string             `db:"category_id" json:"category_id"`
	WalletID         string             `db:"wallet_id" json:"wallet_id"`
	StartDate        date.Date          `db:"start_date" json:"start_date"`
	NextBillingDate  date.Date          `db:"next_billing_date" json:"next_billing_date"`
	EndDate          *date.Date         `db:"end_date" json:"end_date"`
	Status           SubscriptionStatus `db:"status" json:"status"`
	NotifyDaysBefore int                `db:"notify_days_before" json:"notify_days_before"`
	LastNotifiedOn   *date.Date         `db:"last_notified_on" json:"last_notified_on"`
	Description      string             `db:"description" json:"description"`
	WebsiteURL       string             `db:"website_url" json:"website_url"`
	Notes            string             `db:"notes" json:"notes"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

func (s Subscription) DaysUntilRenewal(today date.Date) int {
	return today.DaysUntil(s.NextBillingDate)
}

func (s Subscription) ShouldNotify(today date.Date) bool {
	return s.Status == SubscriptionActive && s.DaysUntilRenewal(today) <= s.NotifyDaysBefore
}

type BudgetType string

const (
	BudgetMonthly  BudgetType = "monthly"
	BudgetProject  BudgetType = "project"
	BudgetCategory BudgetType = "category"
)

type Budget struct {
	ID             string       `db:"id" json:"id"`
	OwnerID        string       `db:"owner_id" json:"-"`
	Name           string       `db:"name" json:"name"`
	Type           BudgetType   `db:"budget_type" json:"budget_type"`
	ProjectID      *string      `db:"project_id" json:"project_id"`
	CategoryID     *string      `db:"category_id" json:"category_id"`
	Amount         money.Amount `db:"amount" json:"amount"`
	Currency       string       `db:"currency" json:"currency"`
	StartDate      date.Date    `db:"start_date" json:"start_date"`
	EndDate        date.Date    `db:"end_date" json:"end_date"`
	AlertThreshold int          `db:"alert_threshold" json:"alert_threshold"`
	Description    string       `db:"description" json:"description"`
	IsActive       bool         `db:"is_active" json:"is_active"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// BudgetUsage is derived on every read and never stored.
type BudgetUsage struct {
	SpentAmount     money.Amount    `json:"spent_amount"`
	RemainingAmount money.Amount    `json:"remaining_amount"`
	UsagePercentage decimal.Decimal `json:"usage_percentage"`
	IsExceeded      bool            `json:"is_exceeded"`
	ShouldAlert     bool            `json:"should_alert"`
}

func (b Budget) Usage(spent money.Amount) BudgetUsage {
	usage := money.Percent(int64(spent), int64(b.Amount))
	return BudgetUsage{
		SpentAmount:     spent,
		RemainingAmount: b.Amount - spent,
		UsagePercentage: usage,
		IsExceeded:      spent > b.Amount,
		ShouldAlert:     usage.GreaterThanOrEqual(decimal.NewFromInt(int64(b.AlertThreshold))),
	}
}

type BudgetStatus struct {
	Budget
	BudgetUsage
}

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
)

type SavingsGoal struct {
	ID            string       `db:"id" json:"id"`
	OwnerID       string       `db:"owner_id" json:"-"`
	Name          string       `db:"name" json:"name"`
	WalletID      string       `db:"wallet_id" json:"wallet_id"`
	TargetAmount  money.Amount `db:"target_amount" json:"target_amount"`
	CurrentAmount money.Amount `db:"current_amount" json:"current_amount"`
	TargetDate    *date.Date   `db:"target_date" json:"target_date"`
	Status        GoalStatus   `db:"status" json:"status"`
	Description   string       `db:"description" json:"description"`
	Icon          string       `db:"icon" json:"icon"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

func (g SavingsGoal) ProgressPercentage() decimal.Decimal {
	progress := money.Percent(int64(g.CurrentAmount), int64(g.TargetAmount))
	if progress.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return progress
}

func (g SavingsGoal) RemainingAmount() money.Amount {
	if g.CurrentAmount >= g.TargetAmount {
		return 0
	}
	return g.TargetAmount - g.CurrentAmount
}

// AddContribution grows the goal and completes it when the target is reached.
// It reports whether this contribution completed the goal.
func (g *SavingsGoal) AddContribution(amount money.Amount) bool {
	g.CurrentAmount += amount
	if g.Status == GoalActive && g.CurrentAmount >= g.TargetAmount {
		g.Status = GoalCompleted
		return true
	}
	return false
}

type GoalView struct {
	SavingsGoal
	ProgressPercentage decimal.Decimal `json:"progress_percentage"`
	Remaining          money.Amount    `json:"remaining_amount"`
}

func NewGoalView(g SavingsGoal) GoalView {
	return GoalView{SavingsGoal: g, ProgressPercentage: g.ProgressPercentage(), Remaining: g.RemainingAmount()}
}

type HistoryAction string

const (
	ActionCreate   HistoryAction = "create"
	ActionUpdate   HistoryAction = "update"
	ActionDelete   HistoryAction = "delete"
	ActionTransfer HistoryAction = "transfer"
)

type HistoryEntry struct {
	ID          string        `db:"id" json:"id"`
	OwnerID     string        `db:"owner_id" json:"-"`
	ActorID     string        `db:"actor_id" json:"actor_id"`
	Action      HistoryAction `db:"action" json:"action"`
	EntityType  string        `db:"entity_type" json:"entity_type"`
	EntityID    string        `db:"entity_id" json:"entity_id"`
	OldData     *string       `db:"old_data" json:"old_data"`
	NewData     *string       `db:"new_data" json:"new_data"`
	Description string        `db:"description" json:"description"`
	IPAddress   *string       `db:"ip_address" json:"ip_address"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}
