package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivisrun/study-core/pkg/surfaces"
)

func openAIServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "hello"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 20}
		}`))
	}))
}

func TestExecuteQuery_ComputesCostFromPriceTable(t *testing.T) {
	srv := openAIServer(t)
	defer srv.Close()

	leaf := NewLeaf("openai-api", srv.URL, "key", "gpt-4o", NewOpenAIProtocol(), PriceTable{
		InputPerThousandUsd:  0.01,
		OutputPerThousandUsd: 0.03,
	})

	resp, err := leaf.ExecuteQuery(context.Background(), surfaces.Request{QueryText: "hi"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "hello", resp.ResponseText)
	assert.InDelta(t, 0.01*10/1000+0.03*20/1000, resp.TokenUsage.EstimatedCostUsd, 0.0001)
}

func TestExecuteQuery_CachesPriceTableAcrossCallsForSameModel(t *testing.T) {
	srv := openAIServer(t)
	defer srv.Close()

	leaf := NewLeaf("openai-api", srv.URL, "key", "gpt-4o", NewOpenAIProtocol(), PriceTable{
		InputPerThousandUsd:  0.01,
		OutputPerThousandUsd: 0.03,
	})

	_, err := leaf.ExecuteQuery(context.Background(), surfaces.Request{QueryText: "first"})
	require.NoError(t, err)
	require.Equal(t, 1, leaf.modelCache.Len())

	_, err = leaf.ExecuteQuery(context.Background(), surfaces.Request{QueryText: "second"})
	require.NoError(t, err)
	assert.Equal(t, 1, leaf.modelCache.Len(), "second query for the same model reuses the cached price entry")

	cached, ok := leaf.modelCache.Get("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, leaf.Prices, cached)
}

func TestExecuteQuery_CachesSeparateModelsIndependently(t *testing.T) {
	srv := openAIServer(t)
	defer srv.Close()

	leaf := NewLeaf("openai-api", srv.URL, "key", "gpt-4o", NewOpenAIProtocol(), PriceTable{
		InputPerThousandUsd:  0.01,
		OutputPerThousandUsd: 0.03,
	})

	_, err := leaf.ExecuteQuery(context.Background(), surfaces.Request{QueryText: "a", Model: "gpt-4o"})
	require.NoError(t, err)
	_, err = leaf.ExecuteQuery(context.Background(), surfaces.Request{QueryText: "b", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	assert.Equal(t, 2, leaf.modelCache.Len())
}
