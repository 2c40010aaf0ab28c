// Package llm implements the LLM-API surface leaves (openai-api,
// anthropic-api, google-ai-api, perplexity-api, xai-api, together-api) from
// spec §4.2: each builds a JSON chat-completion-shaped POST body, sends it
// with bearer-token auth, and parses the provider's response shape into the
// canonical surfaces.Response.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aivisrun/study-core/pkg/surfaces"
)

// Protocol builds and parses one provider's wire format. Each named LLM
// surface supplies one; the shared Leaf handles HTTP transport, auth
// headers, and token->cost conversion uniformly.
type Protocol interface {
	// BuildBody returns the JSON-marshalable request body for req.
	BuildBody(req surfaces.Request, model string) interface{}
	// Endpoint returns the path appended to the provider's base URL.
	Endpoint() string
	// ParseResponse extracts text and usage from a successful HTTP response body.
	ParseResponse(body []byte) (text string, inputTokens, outputTokens int, err error)
}

// PriceTable prices a model's usage per 1,000 tokens.
type PriceTable struct {
	InputPerThousandUsd  float64
	OutputPerThousandUsd float64
}

// Leaf is the shared LLM-API leaf: it implements surfaces.Capability by
// delegating wire-format concerns to a Protocol.
type Leaf struct {
	SurfaceID  string
	BaseURL    string
	APIKey     string
	Model      string
	Protocol   Protocol
	Prices     PriceTable
	HTTPClient *http.Client
	modelCache *lru.Cache[string, PriceTable]
}

// NewLeaf builds a Leaf for one provider/model pair.
func NewLeaf(surfaceID, baseURL, apiKey, model string, protocol Protocol, prices PriceTable) *Leaf {
	cache, _ := lru.New[string, PriceTable](32)
	return &Leaf{
		SurfaceID:  surfaceID,
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		Protocol:   protocol,
		Prices:     prices,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		modelCache: cache,
	}
}

// ExecuteQuery implements surfaces.Capability.
func (l *Leaf) ExecuteQuery(ctx context.Context, req surfaces.Request) (surfaces.Response, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = l.Model
	}

	body := l.Protocol.BuildBody(req, model)
	payload, err := json.Marshal(body)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.BaseURL+l.Protocol.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.APIKey)

	resp, err := l.HTTPClient.Do(httpReq)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("%s request failed: %w", l.SurfaceID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return surfaces.Response{}, fmt.Errorf("%s returned %d: %s", l.SurfaceID, resp.StatusCode, string(respBody))
	}

	text, inputTokens, outputTokens, err := l.Protocol.ParseResponse(respBody)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("parse response: %w", err)
	}

	totalMs := time.Since(start).Milliseconds()
	prices := l.priceFor(model)
	cost := float64(inputTokens)/1000*prices.InputPerThousandUsd + float64(outputTokens)/1000*prices.OutputPerThousandUsd

	return surfaces.Response{
		Success:      true,
		ResponseText: text,
		TokenUsage: &surfaces.TokenUsage{
			Input:            inputTokens,
			Output:           outputTokens,
			Total:            inputTokens + outputTokens,
			EstimatedCostUsd: cost,
		},
		Timing: surfaces.Timing{TotalMs: totalMs, ResponseMs: totalMs},
	}, nil
}

// priceFor returns the price table used to cost a query for model. Every
// model name maps to the leaf's single configured Prices table: the cache
// holds one entry per model name seen and returns it on later queries, but
// prices do not vary by model.
func (l *Leaf) priceFor(model string) PriceTable {
	if cached, ok := l.modelCache.Get(model); ok {
		return cached
	}
	l.modelCache.Add(model, l.Prices)
	return l.Prices
}

// ExecuteHealthCheck runs a trivial low-token-cap query (spec §4.2: "all
// leaves share health-check hooks").
func (l *Leaf) ExecuteHealthCheck(ctx context.Context) (surfaces.Response, error) {
	return l.ExecuteQuery(ctx, surfaces.Request{QueryText: "Say OK.", MaxTokens: 5})
}
