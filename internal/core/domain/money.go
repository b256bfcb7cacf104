package domain

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const priceScale = 2

// ParseAmount converts a price in any of the shapes the storefront API and
// callers hand us into a finite non-negative decimal. Anything it cannot
// read as such (nil, garbage strings, NaN, infinities, negatives) is zero.
func ParseAmount(raw any) decimal.Decimal {
	var d decimal.Decimal

	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		d = v
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(v)
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int32:
		d = decimal.NewFromInt32(v)
	case int64:
		d = decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}

	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Multiply returns unitPrice * quantity. Non-positive quantities yield zero.
func Multiply(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// FormatAmount renders d with exactly two decimals, rounding half away from zero.
func FormatAmount(d decimal.Decimal) string {
	return d.Round(priceScale).StringFixed(priceScale)
}

// NormalizePrice re-renders a raw price in the canonical two-decimal form.
func NormalizePrice(raw any) string {
	return FormatAmount(ParseAmount(raw))
}

// CurrencyFormatter renders amounts for display in a fixed locale and currency.
type CurrencyFormatter struct {
	tag  language.Tag
	unit currency.Unit
}

// NewCurrencyFormatter falls back to ru/RUB when locale or ISO code are not recognised.
func NewCurrencyFormatter(locale, iso string) CurrencyFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Russian
	}
	unit, err := currency.ParseISO(iso)
	if err != nil {
		unit = currency.RUB
	}
	return CurrencyFormatter{tag: tag, unit: unit}
}

func (f CurrencyFormatter) FormatDisplay(raw any) string {
	amount := ParseAmount(raw).Round(priceScale)
	p := message.NewPrinter(f.tag)
	return p.Sprint(currency.Symbol(f.unit.Amount(amount.InexactFloat64())))
}

// PriceRange renders "min – max" over the given prices, or a single price
// when they are all equal. An empty input renders as "".
func (f CurrencyFormatter) PriceRange(prices []string) string {
	if len(prices) == 0 {
		return ""
	}

	lo := ParseAmount(prices[0])
	hi := lo
	for _, p := range prices[1:] {
		v := ParseAmount(p)
		if v.LessThan(lo) {
			lo = v
		}
		if v.GreaterThan(hi) {
			hi = v
		}
	}

	if lo.Equal(hi) {
		return f.FormatDisplay(lo)
	}
	return f.FormatDisplay(lo) + " – " + f.FormatDisplay(hi)
}
