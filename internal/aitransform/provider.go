package aitransform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Kind selects a provider implementation.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindGemini    Kind = "gemini"
	KindAnthropic Kind = "anthropic"
	KindFireworks Kind = "fireworks"
)

// Kinds lists every supported provider.
var Kinds = []Kind{KindOpenAI, KindGemini, KindAnthropic, KindFireworks}

const (
	defaultMaxTokens = 1024
	defaultTimeout   = 60 * time.Second
	maxErrorBody     = 4 << 10
)

var defaultModels = map[Kind]string{
	KindOpenAI:    "gpt-4o-mini",
	KindGemini:    "gemini-1.5-flash",
	KindAnthropic: "claude-3-5-haiku-latest",
	KindFireworks: "accounts/fireworks/models/llama-v3p1-8b-instruct",
}

var defaultEndpoints = map[Kind]string{
	KindOpenAI:    "https://api.openai.com/v1",
	KindGemini:    "https://generativelanguage.googleapis.com/v1beta",
	KindFireworks: "https://api.fireworks.ai/inference/v1",
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider  Kind
	Model     string
	APIKey    string
	Endpoint  string // base URL override
	MaxTokens int
	Timeout   time.Duration
}

// New builds the provider named by cfg.Provider.
func New(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("aitransform: %s: api key is required", cfg.Provider)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoints[cfg.Provider]
	}
	hc := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case KindOpenAI, KindFireworks:
		return &chatProvider{cfg: cfg, http: hc}, nil
	case KindGemini:
		return &geminiProvider{cfg: cfg, http: hc}, nil
	case KindAnthropic:
		return newAnthropic(cfg, hc), nil
	default:
		return nil, fmt.Errorf("aitransform: unknown provider %q", cfg.Provider)
	}
}

// postJSON sends body to url and returns the response payload. Non-2xx
// responses become errors carrying the provider's error message.
func postJSON(ctx context.Context, hc *http.Client, url string, header http.Header, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		if len(payload) > maxErrorBody {
			payload = payload[:maxErrorBody]
		}
		msg := gjson.GetBytes(payload, "error.message").String()
		if msg == "" {
			msg = string(payload)
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return payload, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// chatProvider speaks the chat completions API shared by OpenAI and
// Fireworks.
type chatProvider struct {
	cfg  Config
	http *http.Client
}

func (p *chatProvider) Complete(ctx context.Context, pr Prompt) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	payload, err := postJSON(ctx, p.http, p.cfg.Endpoint+"/chat/completions", header, chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: pr.System},
			{Role: "user", Content: pr.User},
		},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.cfg.Provider, err)
	}
	return gjson.GetBytes(payload, "choices.0.message.content").String(), nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiProvider struct {
	cfg  Config
	http *http.Client
}

func (p *geminiProvider) Complete(ctx context.Context, pr Prompt) (string, error) {
	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: pr.System}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: pr.User}}}},
	}
	req.GenerationConfig.MaxOutputTokens = p.cfg.MaxTokens
	req.GenerationConfig.Temperature = 0.2

	header := http.Header{}
	header.Set("x-goog-api-key", p.cfg.APIKey)
	url := fmt.Sprintf("%s/models/%s:generateContent", p.cfg.Endpoint, p.cfg.Model)
	payload, err := postJSON(ctx, p.http, url, header, req)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	var out string
	gjson.GetBytes(payload, "candidates.0.content.parts.#.text").ForEach(func(_, v gjson.Result) bool {
		out += v.String()
		return true
	})
	return out, nil
}
