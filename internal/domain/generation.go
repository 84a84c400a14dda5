package domain

// Metric is a ranking criterion for winner selection.
type Metric string

const (
	MetricCTR         Metric = "ctr"
	MetricROAS        Metric = "roas"
	MetricConversions Metric = "conversions"
)

// Valid reports whether m is a supported ranking metric.
func (m Metric) Valid() bool {
	return m == MetricCTR || m == MetricROAS || m == MetricConversions
}

// WinnerSample is a top performing angle handed to the content generator.
type WinnerSample struct {
	Angle   AngleDraft        `json:"angle"`
	Metrics AggregatedMetrics `json:"metrics"`
}

// PatternAnalysis is the generator's read on why winners win.
type PatternAnalysis struct {
	Patterns        []string `json:"patterns"`
	Recommendations []string `json:"recommendations"`
}

// ProductBrief is the campaign context a generator writes copy for.
type ProductBrief struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	TargetAudience string `json:"target_audience"`
}

// GenerateRequest asks a generator for Count new drafts seeded by winners.
type GenerateRequest struct {
	Seeds    []AngleDraft    `json:"seeds"`
	Patterns PatternAnalysis `json:"patterns"`
	Product  ProductBrief    `json:"product"`
	Count    int             `json:"count"`
}
