package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Platform is the ad network a performance row was reported by.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformGoogle    Platform = "google"
	PlatformYouTube   Platform = "youtube"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformSnapchat  Platform = "snapchat"
	PlatformPinterest Platform = "pinterest"
)

// Platforms lists every supported platform.
var Platforms = []Platform{
	PlatformFacebook, PlatformInstagram, PlatformTikTok, PlatformGoogle,
	PlatformYouTube, PlatformLinkedIn, PlatformTwitter, PlatformSnapchat,
	PlatformPinterest,
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	for _, s := range Platforms {
		if p == s {
			return true
		}
	}
	return false
}

// Locales lists the supported locales as canonical BCP-47 tags.
var Locales = []string{
	"en-US", "en-GB", "es-ES", "es-MX", "fr-FR", "de-DE",
	"it-IT", "pt-BR", "ja-JP", "ko-KR", "zh-CN", "nl-NL",
}

// PerformanceRow is one ingested line of campaign metrics. Rows are never
// updated after insert.
type PerformanceRow struct {
	ID          string          `json:"id" db:"id"`
	BatchID     string          `json:"batch_id" db:"batch_id"`
	AngleID     string          `json:"angle_id" db:"angle_id"`
	Impressions int64           `json:"impressions" db:"impressions"`
	Clicks      int64           `json:"clicks" db:"clicks"`
	Conversions int64           `json:"conversions" db:"conversions"`
	Spend       decimal.Decimal `json:"spend" db:"spend"`
	Revenue     decimal.Decimal `json:"revenue" db:"revenue"`
	Platform    *Platform       `json:"platform,omitempty" db:"platform"`
	Locale      *string         `json:"locale,omitempty" db:"locale"`
	DateStart   *time.Time      `json:"date_start,omitempty" db:"date_start"`
	DateEnd     *time.Time      `json:"date_end,omitempty" db:"date_end"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Totals holds the summed raw counters for one angle.
type Totals struct {
	RowCount    int64           `json:"row_count"`
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Conversions int64           `json:"conversions"`
	Spend       decimal.Decimal `json:"spend"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// Add folds one row into the totals. Counters saturate at math.MaxInt64.
func (t Totals) Add(r PerformanceRow) Totals {
	t.RowCount++
	t.Impressions = addCount(t.Impressions, r.Impressions)
	t.Clicks = addCount(t.Clicks, r.Clicks)
	t.Conversions = addCount(t.Conversions, r.Conversions)
	t.Spend = t.Spend.Add(r.Spend)
	t.Revenue = t.Revenue.Add(r.Revenue)
	return t
}

// addCount adds two non-negative counters without wrapping.
func addCount(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

// AggregatedMetrics is the computed performance view of one angle. It is
// derived on every request and never stored.
type AggregatedMetrics struct {
	AngleID string `json:"angle_id"`
	Totals
	CTR  float64  `json:"ctr"`
	CPA  *float64 `json:"cpa"`
	ROAS *float64 `json:"roas"`
}
