package textutil

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var supportedLocales = []language.Tag{
	language.Turkish,
	language.English,
}

var localeMatcher = language.NewMatcher(supportedLocales)

var dateLayouts = map[language.Base]string{
	mustBase(language.Turkish): "02.01.2006 15:04",
	mustBase(language.English): "Jan 2, 2006 15:04",
}

// Localizer renders money amounts and dates for the store locale.
type Localizer struct {
	tag      language.Tag
	unit     currency.Unit
	scale    int
	location *time.Location
	printer  *message.Printer
}

// NewLocalizer resolves the locale, ISO currency code, and IANA time zone.
func NewLocalizer(locale, currencyCode, timeZone string) (*Localizer, error) {
	tag := language.Turkish
	if trimmed := strings.TrimSpace(locale); trimmed != "" {
		parsed, err := language.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("textutil: parse locale %q: %w", locale, err)
		}
		matched, _, _ := localeMatcher.Match(parsed)
		tag = matched
	}

	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if code == "" {
		code = "TRY"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("textutil: parse currency %q: %w", currencyCode, err)
	}
	scale, _ := currency.Standard.Rounding(unit)

	location := time.UTC
	if trimmed := strings.TrimSpace(timeZone); trimmed != "" {
		loaded, err := time.LoadLocation(trimmed)
		if err != nil {
			return nil, fmt.Errorf("textutil: load time zone %q: %w", timeZone, err)
		}
		location = loaded
	}

	return &Localizer{
		tag:      tag,
		unit:     unit,
		scale:    scale,
		location: location,
		printer:  message.NewPrinter(tag),
	}, nil
}

// Locale returns the matched BCP 47 tag.
func (l *Localizer) Locale() string {
	return l.tag.String()
}

// Currency returns the ISO 4217 currency code.
func (l *Localizer) Currency() string {
	return l.unit.String()
}

// Amount renders minor units as a localized decimal, e.g. "1.800,00" for tr.
func (l *Localizer) Amount(minor int64) string {
	major := float64(minor) / math.Pow10(l.scale)
	return l.printer.Sprint(number.Decimal(major, number.Scale(l.scale)))
}

// Money renders minor units with the currency code, e.g. "1.800,00 TRY".
func (l *Localizer) Money(minor int64) string {
	return l.Amount(minor) + " " + l.unit.String()
}

// Date renders the timestamp in the store time zone using a locale specific layout.
func (l *Localizer) Date(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	base, _ := l.tag.Base()
	layout, ok := dateLayouts[base]
	if !ok {
		layout = time.RFC3339
	}
	return ts.In(l.location).Format(layout)
}

func mustBase(tag language.Tag) language.Base {
	base, _ := tag.Base()
	return base
}
