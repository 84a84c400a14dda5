package generator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/ignite/copyloop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	reply string
	err   error
	calls []*bedrockruntime.InvokeModelInput
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	body, _ := json.Marshal(map[string]any{
		"content":     []map[string]string{{"type": "text", "text": f.reply}},
		"stop_reason": "end_turn",
		"usage":       map[string]int{"input_tokens": 10, "output_tokens": 20},
	})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func (f *fakeInvoker) sent(t *testing.T) invokeRequest {
	t.Helper()
	require.NotEmpty(t, f.calls)
	var req invokeRequest
	require.NoError(t, json.Unmarshal(f.calls[len(f.calls)-1].Body, &req))
	return req
}

func roas(v float64) *float64 { return &v }

func samples() []domain.WinnerSample {
	return []domain.WinnerSample{{
		Angle: domain.AngleDraft{Headline: "Run further?", Body: "Light on every trail.", CTA: "Shop now"},
		Metrics: domain.AggregatedMetrics{
			AngleID: "a", Totals: domain.Totals{Impressions: 10000, Clicks: 500, Conversions: 50},
			CTR: 5, CPA: roas(2), ROAS: roas(2.5),
		},
	}}
}

func TestBedrock_AnalyzePatterns(t *testing.T) {
	inv := &fakeInvoker{reply: "Sure.\n```json\n{\"patterns\":[\"questions\"],\"recommendations\":[\"ask more\"]}\n```"}
	b, err := NewBedrock(inv, BedrockOptions{ModelID: "test-model"})
	require.NoError(t, err)

	pa, err := b.AnalyzePatterns(context.Background(), samples())
	require.NoError(t, err)
	assert.Equal(t, []string{"questions"}, pa.Patterns)
	assert.Equal(t, []string{"ask more"}, pa.Recommendations)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, "test-model", aws.ToString(inv.calls[0].ModelId))
	req := inv.sent(t)
	assert.Equal(t, anthropicVersion, req.AnthropicVersion)
	require.Len(t, req.Messages, 1)
	prompt := req.Messages[0].Content[0].Text
	assert.Contains(t, prompt, "Headline: Run further?")
	assert.Contains(t, prompt, "CTR: 5.00%, CPA: 2.00, ROAS: 2.50")
}

func TestBedrock_AnalyzeRendersMissingRatios(t *testing.T) {
	inv := &fakeInvoker{reply: `{"patterns":[],"recommendations":[]}`}
	b, err := NewBedrock(inv, BedrockOptions{})
	require.NoError(t, err)

	s := samples()
	s[0].Metrics.CPA = nil
	s[0].Metrics.ROAS = nil
	_, err = b.AnalyzePatterns(context.Background(), s)
	require.NoError(t, err)
	assert.Contains(t, inv.sent(t).Messages[0].Content[0].Text, "CPA: n/a, ROAS: n/a")
	assert.Equal(t, DefaultModelID, aws.ToString(inv.calls[0].ModelId))
}

func TestBedrock_GenerateVariants(t *testing.T) {
	inv := &fakeInvoker{reply: `Here you go: [{"headline":" Go further ","body":"b1","cta":"Buy"},{"headline":"","body":"dropped"},{"headline":"Trail ready","body":"b2","cta":"Shop"}]`}
	b, err := NewBedrock(inv, BedrockOptions{})
	require.NoError(t, err)

	drafts, err := b.GenerateVariants(context.Background(), domain.GenerateRequest{
		Seeds:    []domain.AngleDraft{{Headline: "Run further?", Body: "Light.", CTA: "Shop now"}},
		Patterns: domain.PatternAnalysis{Patterns: []string{"questions"}},
		Product:  domain.ProductBrief{Name: "Trail shoes", Description: "Lightweight trail runner"},
		Count:    3,
	})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "Go further", drafts[0].Headline)
	assert.Equal(t, "Trail ready", drafts[1].Headline)

	prompt := inv.sent(t).Messages[0].Content[0].Text
	assert.Contains(t, prompt, "Description: Lightweight trail runner")
	assert.Contains(t, prompt, "- Run further? | Light. | Shop now")
	assert.Contains(t, prompt, "- questions")
	assert.Contains(t, prompt, "Write 3 new ad angles")
	assert.NotContains(t, prompt, "Audience:")
	assert.NotContains(t, prompt, "Recommendations:")
}

func TestBedrock_Errors(t *testing.T) {
	b, err := NewBedrock(&fakeInvoker{err: errors.New("throttling")}, BedrockOptions{})
	require.NoError(t, err)
	_, err = b.AnalyzePatterns(context.Background(), samples())
	assert.ErrorContains(t, err, "throttling")

	b, err = NewBedrock(&fakeInvoker{reply: "I cannot help with that."}, BedrockOptions{})
	require.NoError(t, err)
	_, err = b.GenerateVariants(context.Background(), domain.GenerateRequest{Count: 1})
	assert.ErrorIs(t, err, ErrMalformedReply)

	b, err = NewBedrock(&fakeInvoker{reply: "{not json}"}, BedrockOptions{})
	require.NoError(t, err)
	_, err = b.AnalyzePatterns(context.Background(), samples())
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestStatic_Deterministic(t *testing.T) {
	s := NewStatic()
	req := domain.GenerateRequest{
		Seeds: []domain.AngleDraft{
			{Headline: "Run further?", Body: "Light.", CTA: "Shop"},
			{Headline: "Built for mud", Body: "Grip.", CTA: "Buy"},
		},
		Product: domain.ProductBrief{Description: "Trail runner"},
		Count:   3,
	}
	a, err := s.GenerateVariants(context.Background(), req)
	require.NoError(t, err)
	b, err := s.GenerateVariants(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a, 3)
	assert.Equal(t, "New: Run further?", a[0].Headline)
	assert.Equal(t, "Finally, Built for mud", a[1].Headline)
	assert.Equal(t, "Light. Trail runner", a[0].Body)
	assert.Equal(t, "Shop", a[2].CTA)

	_, err = s.GenerateVariants(context.Background(), domain.GenerateRequest{Count: 1})
	assert.Error(t, err)
}

func TestStatic_AnalyzePatterns(t *testing.T) {
	pa, err := NewStatic().AnalyzePatterns(context.Background(), samples())
	require.NoError(t, err)
	assert.Contains(t, pa.Patterns, "Winning headlines average 2.0 words")
	assert.Contains(t, pa.Patterns, "1 of 1 winners ask a question in the headline")
	require.NotEmpty(t, pa.Recommendations)
	assert.Contains(t, pa.Recommendations[0], "5.00%")

	pa, err = NewStatic().AnalyzePatterns(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, pa.Patterns)
	assert.NotNil(t, pa.Patterns)
}
