package generator

import (
	"fmt"
	"strings"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/osteele/liquid"
)

const systemPrompt = `You are a senior performance copywriter. You study ad copy that won on real campaign data and explain, in plain language, what made it work. You always answer with JSON only, no prose around it.`

const analyzeTemplate = `Here are the best performing ad angles of a campaign.
{% for w in winners %}
Angle {{ forloop.index }}
Headline: {{ w.headline }}
Body: {{ w.body }}
CTA: {{ w.cta }}
Impressions: {{ w.impressions }}, clicks: {{ w.clicks }}, conversions: {{ w.conversions }}
CTR: {{ w.ctr }}%, CPA: {{ w.cpa }}, ROAS: {{ w.roas }}
{% endfor %}
List the creative patterns these winners share and concrete recommendations for the next round.
Answer with a JSON object: {"patterns": [string], "recommendations": [string]}`

const generateTemplate = `Product: {{ product.name }}
Description: {{ product.description }}
{% if product.audience != "" %}Audience: {{ product.audience }}
{% endif %}
Winning angles:
{% for s in seeds %}- {{ s.headline }} | {{ s.body }} | {{ s.cta }}
{% endfor %}
Patterns that worked:
{% for p in patterns %}- {{ p }}
{% endfor %}{% if recommendations.size > 0 %}Recommendations:
{% for r in recommendations %}- {{ r }}
{% endfor %}{% endif %}
Write {{ count }} new ad angles that apply these patterns without copying the winners.
Answer with a JSON array of {{ count }} objects: [{"headline": string, "body": string, "cta": string}]`

// prompts holds the parsed Liquid templates.
type prompts struct {
	analyze  *liquid.Template
	generate *liquid.Template
}

func parsePrompts(engine *liquid.Engine) (*prompts, error) {
	analyze, err := engine.ParseString(analyzeTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse analyze prompt: %w", err)
	}
	generate, err := engine.ParseString(generateTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse generate prompt: %w", err)
	}
	return &prompts{analyze: analyze, generate: generate}, nil
}

func (p *prompts) renderAnalyze(winners []domain.WinnerSample) (string, error) {
	rows := make([]map[string]any, len(winners))
	for i, w := range winners {
		rows[i] = map[string]any{
			"headline":    w.Angle.Headline,
			"body":        w.Angle.Body,
			"cta":         w.Angle.CTA,
			"impressions": w.Metrics.Impressions,
			"clicks":      w.Metrics.Clicks,
			"conversions": w.Metrics.Conversions,
			"ctr":         fmt.Sprintf("%.2f", w.Metrics.CTR),
			"cpa":         formatRatio(w.Metrics.CPA),
			"roas":        formatRatio(w.Metrics.ROAS),
		}
	}
	out, err := p.analyze.RenderString(liquid.Bindings{"winners": rows})
	if err != nil {
		return "", fmt.Errorf("render analyze prompt: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (p *prompts) renderGenerate(req domain.GenerateRequest) (string, error) {
	seeds := make([]map[string]any, len(req.Seeds))
	for i, s := range req.Seeds {
		seeds[i] = map[string]any{"headline": s.Headline, "body": s.Body, "cta": s.CTA}
	}
	out, err := p.generate.RenderString(liquid.Bindings{
		"product": map[string]any{
			"name":        req.Product.Name,
			"description": req.Product.Description,
			"audience":    req.Product.TargetAudience,
		},
		"seeds":           seeds,
		"patterns":        nonNil(req.Patterns.Patterns),
		"recommendations": nonNil(req.Patterns.Recommendations),
		"count":           req.Count,
	})
	if err != nil {
		return "", fmt.Errorf("render generate prompt: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func formatRatio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
