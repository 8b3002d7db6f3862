package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownTransactionKind = errors.New("unknown transaction kind")
	ErrUnknownCategoryKind    = errors.New("unknown category kind")
)

type TransactionKind string

const (
	KindIncome  TransactionKind = "income"
	KindExpense TransactionKind = "expense"
)

func ParseTransactionKind(raw string) (TransactionKind, error) {
	switch k := TransactionKind(raw); k {
	case KindIncome, KindExpense:
		return k, nil
	}
	return "", ErrUnknownTransactionKind
}

// Sign is +1 for income and -1 for expense.
func (k TransactionKind) Sign() int64 {
	if k == KindIncome {
		return 1
	}
	return -1
}

// CategoryKind is closed over income, expense and dual categories. Values
// only come from the constants or ParseCategoryKind.
type CategoryKind struct {
	accepts [2]bool
	name    string
}

var (
	IncomeCategory  = CategoryKind{accepts: [2]bool{true, false}, name: "income"}
	ExpenseCategory = CategoryKind{accepts: [2]bool{false, true}, name: "expense"}
	DualCategory    = CategoryKind{accepts: [2]bool{true, true}, name: "both"}
)

func ParseCategoryKind(raw string) (CategoryKind, error) {
	switch raw {
	case IncomeCategory.name:
		return IncomeCategory, nil
	case ExpenseCategory.name:
		return ExpenseCategory, nil
	case DualCategory.name:
		return DualCategory, nil
	}
	return CategoryKind{}, ErrUnknownCategoryKind
}

// Accepts reports whether a transaction of kind k may use the category.
func (c CategoryKind) Accepts(k TransactionKind) bool {
	switch k {
	case KindIncome:
		return c.accepts[0]
	case KindExpense:
		return c.accepts[1]
	}
	return false
}

func (c CategoryKind) IsZero() bool { return c.name == "" }

func (c CategoryKind) String() string { return c.name }

func (c CategoryKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.name)
}

func (c *CategoryKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseCategoryKind(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c *CategoryKind) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into category kind", value)
	}
	parsed, err := ParseCategoryKind(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c CategoryKind) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, ErrUnknownCategoryKind
	}
	return c.name, nil
}
