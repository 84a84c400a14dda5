package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/pkg/logger"
	"github.com/osteele/liquid"
)

// DefaultModelID is used when no model is configured.
const DefaultModelID = "anthropic.claude-3-sonnet-20240229-v1:0"

const anthropicVersion = "bedrock-2023-05-31"

// ErrMalformedReply is returned when the model answer holds no usable JSON.
var ErrMalformedReply = errors.New("model reply is not valid JSON")

// Invoker is the subset of the Bedrock runtime client used here.
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type invokeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	Temperature      float64   `json:"temperature,omitempty"`
}

type invokeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// BedrockOptions tunes the Bedrock generator.
type BedrockOptions struct {
	ModelID     string
	MaxTokens   int
	Temperature float64
}

// Bedrock generates copy with an Anthropic model hosted on AWS Bedrock.
type Bedrock struct {
	client      Invoker
	modelID     string
	maxTokens   int
	temperature float64
	prompts     *prompts
}

// NewBedrock creates a generator around an existing runtime client.
func NewBedrock(client Invoker, opts BedrockOptions) (*Bedrock, error) {
	if opts.ModelID == "" {
		opts.ModelID = DefaultModelID
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4000
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	p, err := parsePrompts(liquid.NewEngine())
	if err != nil {
		return nil, err
	}
	return &Bedrock{
		client:      client,
		modelID:     opts.ModelID,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		prompts:     p,
	}, nil
}

// NewBedrockFromRegion loads the default AWS credential chain for region.
func NewBedrockFromRegion(ctx context.Context, region string, opts BedrockOptions) (*Bedrock, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewBedrock(bedrockruntime.NewFromConfig(cfg), opts)
}

// AnalyzePatterns asks the model what the winners have in common.
func (b *Bedrock) AnalyzePatterns(ctx context.Context, winners []domain.WinnerSample) (domain.PatternAnalysis, error) {
	prompt, err := b.prompts.renderAnalyze(winners)
	if err != nil {
		return domain.PatternAnalysis{}, err
	}
	text, err := b.invoke(ctx, prompt)
	if err != nil {
		return domain.PatternAnalysis{}, err
	}
	var pa domain.PatternAnalysis
	if err := decodeJSON(text, '{', '}', &pa); err != nil {
		return domain.PatternAnalysis{}, err
	}
	return pa, nil
}

// GenerateVariants asks the model for req.Count new drafts. Drafts without
// a headline are dropped.
func (b *Bedrock) GenerateVariants(ctx context.Context, req domain.GenerateRequest) ([]domain.AngleDraft, error) {
	prompt, err := b.prompts.renderGenerate(req)
	if err != nil {
		return nil, err
	}
	text, err := b.invoke(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var raw []domain.AngleDraft
	if err := decodeJSON(text, '[', ']', &raw); err != nil {
		return nil, err
	}
	drafts := make([]domain.AngleDraft, 0, len(raw))
	for _, d := range raw {
		d.Headline = strings.TrimSpace(d.Headline)
		d.Body = strings.TrimSpace(d.Body)
		d.CTA = strings.TrimSpace(d.CTA)
		if d.Headline == "" {
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func (b *Bedrock) invoke(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        b.maxTokens,
		System:           systemPrompt,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: prompt}},
		}},
		Temperature: b.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("parse bedrock response: %w", err)
	}
	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	logger.Debug("bedrock call finished",
		"model", b.modelID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason,
	)
	return sb.String(), nil
}

// decodeJSON unmarshals the outermost openCh..closeCh span of text into dst.
// Models often wrap JSON in prose or code fences.
func decodeJSON(text string, openCh, closeCh byte, dst any) error {
	start := strings.IndexByte(text, openCh)
	end := strings.LastIndexByte(text, closeCh)
	if start < 0 || end < start {
		return ErrMalformedReply
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return nil
}
