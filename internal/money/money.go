package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrInvalidRate     = errors.New("invalid exchange rate")
)

// Amounts are held in hundredths regardless of the currency's own minor unit.
const minorPerUnit = 100

// maxWhole is the largest whole part whose minor amount fits in an int64.
const maxWhole = (math.MaxInt64 - (minorPerUnit - 1)) / minorPerUnit

var hundred = decimal.NewFromInt(minorPerUnit)

func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	sign := int64(1)
	switch trimmed[0] {
	case '-':
		sign = -1
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	wholePart, fracPart, _ := strings.Cut(trimmed, ".")
	if wholePart == "" {
		wholePart = "0"
	}
	if !isDigits(wholePart) {
		return 0, ErrInvalidAmount
	}
	if len(fracPart) > 2 {
		return 0, ErrTooManyDecimals
	}
	if !isDigits(fracPart) {
		return 0, ErrInvalidAmount
	}
	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil || whole > maxWhole {
		return 0, ErrInvalidAmount
	}
	frac := int64(0)
	switch len(fracPart) {
	case 1:
		frac = int64(fracPart[0]-'0') * 10
	case 2:
		frac = int64(fracPart[0]-'0')*10 + int64(fracPart[1]-'0')
	}
	return sign * (whole*minorPerUnit + frac), nil
}

// ParsePositive is ParseMinor restricted to amounts greater than zero.
func ParsePositive(input string) (int64, error) {
	amount, err := ParseMinor(input)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

func FormatMinor(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	formatted := fmt.Sprintf("%d.%02d", value/minorPerUnit, value%minorPerUnit)
	if negative {
		return "-" + formatted
	}
	return formatted
}

// ConvertMinor multiplies by rate and rounds half away from zero to the cent.
// Every cross-currency movement goes through here or DivideMinor.
func ConvertMinor(amountMinor int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amountMinor).Mul(rate).Round(0).IntPart()
}

// DivideMinor converts an amount quoted in units-per-base back to the base.
func DivideMinor(amountMinor int64, rate decimal.Decimal) (int64, error) {
	if !rate.IsPositive() {
		return 0, ErrInvalidRate
	}
	return decimal.NewFromInt(amountMinor).Div(rate).Round(0).IntPart(), nil
}

// CrossRate derives from->to out of two rates expressed against the same base.
func CrossRate(fromPerBase, toPerBase decimal.Decimal) (decimal.Decimal, error) {
	if !fromPerBase.IsPositive() || !toPerBase.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	return toPerBase.DivRound(fromPerBase, 10), nil
}

// ToDecimal exposes a minor amount as a decimal in major units.
func ToDecimal(amountMinor int64) decimal.Decimal {
	return decimal.NewFromInt(amountMinor).Div(hundred)
}

// Percent returns part/whole*100 rounded to two places, zero when whole is zero.
func Percent(part, whole int64) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).DivRound(decimal.NewFromInt(whole), 2)
}

// CurrencyInfo is the ISO 4217 metadata known for a code.
type CurrencyInfo struct {
	Code     string
	Symbol   string
	Fraction int
}

// LookupCurrency reports whether code is a known ISO currency.
func LookupCurrency(code string) (CurrencyInfo, bool) {
	cur := gomoney.GetCurrency(strings.ToUpper(code))
	if cur == nil {
		return CurrencyInfo{}, false
	}
	return CurrencyInfo{Code: cur.Code, Symbol: cur.Grapheme, Fraction: cur.Fraction}, true
}

// Label renders an amount with the currency's symbol for reports.
func Label(amountMinor int64, code string) string {
	if info, ok := LookupCurrency(code); ok && info.Symbol != "" {
		return info.Symbol + " " + FormatMinor(amountMinor)
	}
	return FormatMinor(amountMinor) + " " + code
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Amount is a minor-unit quantity that crosses JSON as a decimal string.
type Amount int64

func (a Amount) String() string { return FormatMinor(int64(a)) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return ErrInvalidAmount
	}
	parsed, err := ParseMinor(raw[1 : len(raw)-1])
	if err != nil {
		return err
	}
	*a = Amount(parsed)
	return nil
}
