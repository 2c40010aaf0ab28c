package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/aivisrun/study-core/pkg/surfaces"
)

// BedrockLeaf fronts a surface through AWS Bedrock's InvokeModel API. Bedrock
// hosts both first-party (Titan) and third-party marketplace models behind a
// single invoke contract, which is how this core models the together-api
// surface when a deployment routes it through Bedrock rather than directly
// against the provider's own endpoint.
type BedrockLeaf struct {
	SurfaceID string
	ModelID   string
	Prices    PriceTable
	client    *bedrockruntime.Client
}

// NewBedrockLeaf builds a leaf that invokes modelID via Bedrock in region.
func NewBedrockLeaf(ctx context.Context, surfaceID, region, modelID string, prices PriceTable) (*BedrockLeaf, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &BedrockLeaf{
		SurfaceID: surfaceID,
		ModelID:   modelID,
		Prices:    prices,
		client:    bedrockruntime.NewFromConfig(cfg),
	}, nil
}

type bedrockInvokeBody struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type bedrockInvokeResponse struct {
	Completion string `json:"completion"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ExecuteQuery implements surfaces.Capability via bedrockruntime.InvokeModel.
func (b *BedrockLeaf) ExecuteQuery(ctx context.Context, req surfaces.Request) (surfaces.Response, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 512
	}
	temperature := 0.0
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	payload, err := json.Marshal(bedrockInvokeBody{
		Prompt:      req.QueryText,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("marshal bedrock request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("%s bedrock invoke failed: %w", b.SurfaceID, err)
	}

	var parsed bedrockInvokeResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return surfaces.Response{}, fmt.Errorf("parse bedrock response: %w", err)
	}

	totalMs := time.Since(start).Milliseconds()
	cost := float64(parsed.Usage.InputTokens)/1000*b.Prices.InputPerThousandUsd +
		float64(parsed.Usage.OutputTokens)/1000*b.Prices.OutputPerThousandUsd

	return surfaces.Response{
		Success:      true,
		ResponseText: parsed.Completion,
		TokenUsage: &surfaces.TokenUsage{
			Input:            parsed.Usage.InputTokens,
			Output:           parsed.Usage.OutputTokens,
			Total:            parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
			EstimatedCostUsd: cost,
		},
		Timing: surfaces.Timing{TotalMs: totalMs, ResponseMs: totalMs},
	}, nil
}

// ExecuteHealthCheck runs a minimal low-token-cap probe.
func (b *BedrockLeaf) ExecuteHealthCheck(ctx context.Context) (surfaces.Response, error) {
	return b.ExecuteQuery(ctx, surfaces.Request{QueryText: "Say OK.", MaxTokens: 5})
}
