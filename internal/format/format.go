package format

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

type separators struct {
	group   string
	decimal string
}

var (
	commaGroup = separators{group: ",", decimal: "."}
	dotGroup   = separators{group: ".", decimal: ","}
)

// Languages grouping thousands with a dot.
var dotGroupLanguages = map[string]bool{
	"es": true, "pt": true, "de": true, "it": true, "nl": true, "id": true,
}

var symbols = map[string]string{
	"CLP": "$",
	"USD": "US$",
	"EUR": "€",
	"JPY": "¥",
}

// Scale returns the number of minor digits used for the ISO currency code.
// Unknown codes fall back to two.
func Scale(code string) int32 {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// FmtCurrency formats an amount for display.
// Example: FmtCurrency(decimal.NewFromInt(1500), "CLP", "es-CL") => "$1.500"
func FmtCurrency(amount decimal.Decimal, code, locale string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	scale := Scale(code)
	sep := separatorsFor(locale)

	neg := amount.IsNegative()
	fixed := amount.Abs().StringFixed(scale)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	out := groupThousands(intPart, sep.group)
	if fracPart != "" {
		out += sep.decimal + fracPart
	}
	if sym, ok := symbols[code]; ok {
		out = sym + out
	} else {
		out = code + " " + out
	}
	if neg && !amount.Round(scale).IsZero() {
		return "-" + out
	}
	return out
}

// FmtPercent renders a discount percentage without trailing zeros, e.g. "25%" or "12,5%".
func FmtPercent(p decimal.Decimal, locale string) string {
	s := p.String()
	if sep := separatorsFor(locale); sep.decimal != "." {
		s = strings.Replace(s, ".", sep.decimal, 1)
	}
	return s + "%"
}

// FmtDate formats time in a locale-friendly short form.
func FmtDate(t time.Time, locale string) string {
	if t.IsZero() {
		return ""
	}
	switch baseLanguage(locale) {
	case "es", "pt", "it", "fr", "de":
		return t.Format("02-01-2006")
	case "ja":
		return t.Format("2006-01-02")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func separatorsFor(locale string) separators {
	if dotGroupLanguages[baseLanguage(locale)] {
		return dotGroup
	}
	return commaGroup
}

func baseLanguage(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

func groupThousands(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
