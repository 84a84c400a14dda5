package performance

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/copyloop/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// CSV column names. Header matching is case-insensitive.
const (
	ColAngleID     = "angle_id"
	ColImpressions = "impressions"
	ColClicks      = "clicks"
	ColConversions = "conversions"
	ColSpend       = "spend"
	ColRevenue     = "revenue"
	ColPlatform    = "platform"
	ColLocale      = "locale"
	ColDateStart   = "date_start"
	ColDateEnd     = "date_end"
)

// Columns is the full column set in template order.
var Columns = []string{
	ColAngleID, ColImpressions, ColClicks, ColConversions, ColSpend, ColRevenue,
	ColPlatform, ColLocale, ColDateStart, ColDateEnd,
}

// RequiredColumns must be present in every header.
var RequiredColumns = []string{
	ColAngleID, ColImpressions, ColClicks, ColConversions, ColSpend, ColRevenue,
}

var supportedLocales = func() map[string]bool {
	m := make(map[string]bool, len(domain.Locales))
	for _, l := range domain.Locales {
		m[l] = true
	}
	return m
}()

// MaxCount bounds a single row's impressions, clicks and conversions.
const MaxCount int64 = 1_000_000_000_000_000

// RowCandidate is a validated row that has not been checked against storage.
type RowCandidate struct {
	AngleID     string
	Impressions int64
	Clicks      int64
	Conversions int64
	Spend       decimal.Decimal
	Revenue     decimal.Decimal
	Platform    *domain.Platform
	Locale      *string
	DateStart   *time.Time
	DateEnd     *time.Time
}

// ValidateRow coerces one raw CSV record keyed by column name. The first
// failing field rejects the whole row. The returned error has Row unset.
//
// clicks > impressions is accepted; ad platforms report them independently.
func ValidateRow(record map[string]string) (RowCandidate, *domain.RowError) {
	var c RowCandidate
	var rerr *domain.RowError

	raw := strings.TrimSpace(record[ColAngleID])
	if raw == "" {
		return c, rowError(domain.CodeMissingField, "%s is required", ColAngleID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return c, rowError(domain.CodeInvalidIdentifier, "%s %q is not a valid UUID", ColAngleID, raw)
	}
	c.AngleID = id.String()

	if c.Impressions, rerr = parseCount(ColImpressions, record[ColImpressions]); rerr != nil {
		return c, rerr
	}
	if c.Clicks, rerr = parseCount(ColClicks, record[ColClicks]); rerr != nil {
		return c, rerr
	}
	if c.Conversions, rerr = parseCount(ColConversions, record[ColConversions]); rerr != nil {
		return c, rerr
	}
	if c.Spend, rerr = parseAmount(ColSpend, record[ColSpend]); rerr != nil {
		return c, rerr
	}
	if c.Revenue, rerr = parseAmount(ColRevenue, record[ColRevenue]); rerr != nil {
		return c, rerr
	}
	if c.Platform, rerr = parsePlatform(record[ColPlatform]); rerr != nil {
		return c, rerr
	}
	if c.Locale, rerr = parseLocale(record[ColLocale]); rerr != nil {
		return c, rerr
	}
	if c.DateStart, rerr = parseDate(ColDateStart, record[ColDateStart]); rerr != nil {
		return c, rerr
	}
	if c.DateEnd, rerr = parseDate(ColDateEnd, record[ColDateEnd]); rerr != nil {
		return c, rerr
	}
	if c.DateStart != nil && c.DateEnd != nil && c.DateEnd.Before(*c.DateStart) {
		return c, rowError(domain.CodeInvalidDateRange, "%s is before %s", ColDateEnd, ColDateStart)
	}
	return c, nil
}

func rowError(code, format string, args ...any) *domain.RowError {
	return &domain.RowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// parseCount accepts decimal integers and integral numeric strings such as
// "10.0" or "1e3", up to MaxCount.
func parseCount(field, raw string) (int64, *domain.RowError) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, rowError(domain.CodeMissingField, "%s is required", field)
	}
	if strings.ContainsAny(s, "xX_") {
		return 0, rowError(domain.CodeInvalidNumber, "%s %q is not a decimal number", field, s)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, rowError(domain.CodeNegativeValue, "%s must not be negative, got %d", field, n)
		}
		if n > MaxCount {
			return 0, rowError(domain.CodeInvalidNumber, "%s %d is out of range (max %d)", field, n, MaxCount)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	outOfRange := errors.Is(err, strconv.ErrRange)
	switch {
	case err != nil && !outOfRange, math.IsNaN(f), !outOfRange && math.IsInf(f, 0):
		return 0, rowError(domain.CodeInvalidNumber, "%s %q is not a number", field, s)
	case f < 0:
		return 0, rowError(domain.CodeNegativeValue, "%s must not be negative, got %s", field, s)
	case f > float64(MaxCount):
		return 0, rowError(domain.CodeInvalidNumber, "%s %q is out of range (max %d)", field, s, MaxCount)
	case f != math.Trunc(f):
		return 0, rowError(domain.CodeInvalidNumber, "%s %q is not a whole number", field, s)
	}
	return int64(f), nil
}

func parseAmount(field, raw string) (decimal.Decimal, *domain.RowError) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, rowError(domain.CodeMissingField, "%s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, rowError(domain.CodeInvalidNumber, "%s %q is not a number", field, s)
	}
	if d.IsNegative() {
		return decimal.Zero, rowError(domain.CodeNegativeValue, "%s must not be negative, got %s", field, s)
	}
	return d, nil
}

func parsePlatform(raw string) (*domain.Platform, *domain.RowError) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil, nil
	}
	p := domain.Platform(s)
	if !p.Valid() {
		return nil, rowError(domain.CodeInvalidPlatform, "%s %q is not supported", ColPlatform, raw)
	}
	return &p, nil
}

func parseLocale(raw string) (*string, *domain.RowError) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return nil, rowError(domain.CodeInvalidLocale, "%s %q is not a valid locale", ColLocale, s)
	}
	canonical := tag.String()
	if !supportedLocales[canonical] {
		return nil, rowError(domain.CodeInvalidLocale, "%s %q is not supported", ColLocale, s)
	}
	return &canonical, nil
}

func parseDate(field, raw string) (*time.Time, *domain.RowError) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, rowError(domain.CodeInvalidDate, "%s %q is not a date (want YYYY-MM-DD)", field, s)
	}
	t = t.UTC()
	return &t, nil
}
