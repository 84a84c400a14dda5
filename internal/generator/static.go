package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/copyloop/internal/domain"
)

// Static is a deterministic generator. It derives patterns from the
// winners' measurable traits and writes drafts by varying the seed copy.
type Static struct{}

// NewStatic creates a static generator.
func NewStatic() *Static { return &Static{} }

var staticOpeners = []string{"New:", "Finally,", "Discover", "Why", "Try"}

// AnalyzePatterns describes the winners without calling a model.
func (s *Static) AnalyzePatterns(_ context.Context, winners []domain.WinnerSample) (domain.PatternAnalysis, error) {
	pa := domain.PatternAnalysis{Patterns: []string{}, Recommendations: []string{}}
	if len(winners) == 0 {
		return pa, nil
	}

	var words, questions, withCTA int
	var best domain.WinnerSample
	for i, w := range winners {
		words += len(strings.Fields(w.Angle.Headline))
		if strings.HasSuffix(strings.TrimSpace(w.Angle.Headline), "?") {
			questions++
		}
		if w.Angle.CTA != "" {
			withCTA++
		}
		if i == 0 || w.Metrics.CTR > best.Metrics.CTR {
			best = w
		}
	}
	avg := float64(words) / float64(len(winners))

	pa.Patterns = append(pa.Patterns, fmt.Sprintf("Winning headlines average %.1f words", avg))
	if questions > 0 {
		pa.Patterns = append(pa.Patterns, fmt.Sprintf("%d of %d winners ask a question in the headline", questions, len(winners)))
	}
	if withCTA == len(winners) {
		pa.Patterns = append(pa.Patterns, "Every winner closes with an explicit call to action")
	}
	pa.Recommendations = append(pa.Recommendations,
		fmt.Sprintf("Build on %q, the highest CTR winner at %.2f%%", best.Angle.Headline, best.Metrics.CTR),
		"Keep headlines close to the winning length",
	)
	return pa, nil
}

// GenerateVariants cycles through the seeds and rewrites each headline
// with a different opener.
func (s *Static) GenerateVariants(_ context.Context, req domain.GenerateRequest) ([]domain.AngleDraft, error) {
	if len(req.Seeds) == 0 {
		return nil, fmt.Errorf("static generator needs at least one seed")
	}
	out := make([]domain.AngleDraft, req.Count)
	for i := range out {
		seed := req.Seeds[i%len(req.Seeds)]
		opener := staticOpeners[i%len(staticOpeners)]
		body := seed.Body
		if req.Product.Description != "" {
			body = strings.TrimSpace(body + " " + req.Product.Description)
		}
		out[i] = domain.AngleDraft{
			Headline: opener + " " + seed.Headline,
			Body:     body,
			CTA:      seed.CTA,
		}
	}
	return out, nil
}
