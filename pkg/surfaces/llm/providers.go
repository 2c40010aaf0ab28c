package llm

import (
	"encoding/json"
	"fmt"

	"github.com/aivisrun/study-core/pkg/surfaces"
)

func chatMessages(req surfaces.Request) []map[string]string {
	msgs := make([]map[string]string, 0, len(req.ConversationHistory)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	for _, turn := range req.ConversationHistory {
		msgs = append(msgs, map[string]string{"role": turn.Role, "content": turn.Content})
	}
	msgs = append(msgs, map[string]string{"role": "user", "content": req.QueryText})
	return msgs
}

// --- openai-api ---------------------------------------------------------

type openAIProtocol struct{}

// NewOpenAIProtocol builds the openai-api chat-completions protocol.
func NewOpenAIProtocol() Protocol { return openAIProtocol{} }

func (openAIProtocol) Endpoint() string { return "/chat/completions" }

func (openAIProtocol) BuildBody(req surfaces.Request, model string) interface{} {
	body := map[string]interface{}{
		"model":    model,
		"messages": chatMessages(req),
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	return body
}

func (openAIProtocol) ParseResponse(body []byte) (string, int, int, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil
}

// --- anthropic-api --------------------------------------------------------

type anthropicProtocol struct{}

// NewAnthropicProtocol builds the anthropic-api messages protocol.
func NewAnthropicProtocol() Protocol { return anthropicProtocol{} }

func (anthropicProtocol) Endpoint() string { return "/messages" }

func (anthropicProtocol) BuildBody(req surfaces.Request, model string) interface{} {
	messages := make([]map[string]string, 0, len(req.ConversationHistory)+1)
	for _, turn := range req.ConversationHistory {
		messages = append(messages, map[string]string{"role": turn.Role, "content": turn.Content})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.QueryText})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	body := map[string]interface{}{
		"model":      model,
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}
	return body
}

func (anthropicProtocol) ParseResponse(body []byte) (string, int, int, error) {
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, 0, err
	}
	if len(resp.Content) == 0 {
		return "", 0, 0, fmt.Errorf("no content blocks in response")
	}
	return resp.Content[0].Text, resp.Usage.InputTokens, resp.Usage.OutputTokens, nil
}

// --- perplexity-api / xai-api / together-api ------------------------------
// These three surfaces are OpenAI-compatible chat-completions APIs (as
// advertised by each provider), so they share the OpenAI wire protocol and
// differ only by base URL and model name supplied at construction.

// NewPerplexityProtocol builds the perplexity-api protocol (OpenAI-compatible).
func NewPerplexityProtocol() Protocol { return openAIProtocol{} }

// NewXAIProtocol builds the xai-api protocol (OpenAI-compatible).
func NewXAIProtocol() Protocol { return openAIProtocol{} }

// NewTogetherProtocol builds the together-api protocol (OpenAI-compatible).
func NewTogetherProtocol() Protocol { return openAIProtocol{} }

// --- google-ai-api ----------------------------------------------------------

type googleAIProtocol struct{}

// NewGoogleAIProtocol builds the google-ai-api generateContent protocol.
func NewGoogleAIProtocol() Protocol { return googleAIProtocol{} }

func (googleAIProtocol) Endpoint() string { return ":generateContent" }

func (googleAIProtocol) BuildBody(req surfaces.Request, _ string) interface{} {
	parts := []map[string]string{{"text": req.QueryText}}
	contents := []map[string]interface{}{{"role": "user", "parts": parts}}

	body := map[string]interface{}{"contents": contents}
	if req.SystemPrompt != "" {
		body["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": req.SystemPrompt}},
		}
	}
	genConfig := map[string]interface{}{}
	if req.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}
	return body
}

func (googleAIProtocol) ParseResponse(body []byte) (string, int, int, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, 0, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", 0, 0, fmt.Errorf("no candidates in response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount, nil
}
