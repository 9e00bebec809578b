// Package llm implements jam.Musician against OpenAI-compatible chat
// completion APIs. OpenAI, OpenRouter and a local Ollama server all speak
// the same wire format, so one provider covers all three with different base
// URLs and headers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rojolang/jamloop-go/pkg/jam"
)

const (
	// OpenAIBaseURL is the default OpenAI API endpoint.
	OpenAIBaseURL = "https://api.openai.com/v1"

	// OpenRouterBaseURL is the OpenRouter API endpoint.
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// OllamaBaseURL is the OpenAI-compatible endpoint of a local Ollama.
	OllamaBaseURL = "http://localhost:11434/v1"

	defaultMaxTokens   = 512
	defaultTemperature = 0.75
	defaultBPM         = 95.0
)

// Provider implements jam.Musician over an OpenAI-compatible Chat
// Completions API.
type Provider struct {
	name         string
	apiKey       string
	model        string
	baseURL      string
	httpClient   *http.Client
	extraHeaders map[string]string
	maxTokens    int
	temperature  float64
	bpm          float64
}

// NewOpenAI creates a provider against the OpenAI API.
func NewOpenAI(apiKey, model string, opts ...Option) *Provider {
	return newProvider("openai", apiKey, model, OpenAIBaseURL, opts)
}

// NewOpenRouter creates a provider against OpenRouter, an OpenAI-compatible
// router across many model providers.
func NewOpenRouter(apiKey, model string, opts ...Option) *Provider {
	p := newProvider("openrouter", apiKey, model, OpenRouterBaseURL, opts)
	if _, ok := p.extraHeaders["X-Title"]; !ok {
		p.extraHeaders["X-Title"] = "jamloop"
	}
	if _, ok := p.extraHeaders["HTTP-Referer"]; !ok {
		p.extraHeaders["HTTP-Referer"] = "https://github.com/rojolang/jamloop-go"
	}
	return p
}

// NewOllama creates a provider against a local Ollama server. host may be
// empty for the default localhost endpoint; no API key is required.
func NewOllama(host, model string, opts ...Option) *Provider {
	baseURL := OllamaBaseURL
	if host != "" {
		baseURL = strings.TrimRight(host, "/") + "/v1"
	}
	return newProvider("ollama", "", model, baseURL, opts)
}

func newProvider(name, apiKey, model, baseURL string, opts []Option) *Provider {
	p := &Provider{
		name:         name,
		apiKey:       apiKey,
		model:        model,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		extraHeaders: make(map[string]string),
		maxTokens:    defaultMaxTokens,
		temperature:  defaultTemperature,
		bpm:          defaultBPM,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// chatRequest is the Chat Completions request format.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the Chat Completions response format.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Respond sends the captured phrase plus the style directive to the model
// and returns its raw textual reply, unparsed.
func (p *Provider) Respond(ctx context.Context, seq jam.NoteSequence, style string) (string, error) {
	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildSystemPrompt(style, p.bpm)},
			{Role: "user", Content: BuildUserMessage(seq)},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	respBody, err := p.doRequest(ctx, &req)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in %s response", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) doRequest(ctx context.Context, req *chatRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatCompletionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(p.name, resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for key, value := range p.extraHeaders {
		req.Header.Set(key, value)
	}
}

func (p *Provider) chatCompletionsURL() string {
	return strings.TrimRight(p.baseURL, "/") + "/chat/completions"
}
