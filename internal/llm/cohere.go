package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	tallyotel "github.com/davidahmann/tally/internal/otel"
)

const defaultCohereBaseURL = "https://api.cohere.com"

// CohereProvider implements Provider on the Cohere v2 chat API.
type CohereProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewCohereProvider creates a Cohere provider. An empty baseURL uses the
// public API.
func NewCohereProvider(apiKey, baseURL string) *CohereProvider {
	if baseURL == "" {
		baseURL = defaultCohereBaseURL
	}
	return &CohereProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

func (p *CohereProvider) Name() string {
	return "cohere"
}

type cohereRequest struct {
	Model       string          `json:"model"`
	Messages    []cohereMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream"`
}

type cohereMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cohereResponse struct {
	ID           string `json:"id"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Usage struct {
		Tokens struct {
			InputTokens  float64 `json:"input_tokens"`
			OutputTokens float64 `json:"output_tokens"`
		} `json:"tokens"`
	} `json:"usage"`
}

// Generate sends one chat request. Only "text" content parts are joined;
// reasoning models also emit "thinking" parts, which are dropped.
func (p *CohereProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "gen_ai.generate",
		trace.WithAttributes(tallyotel.LLMRequestAttributes("cohere", req.Model, req.Temperature, req.MaxTokens)...))
	defer span.End()

	ctx, cancel := withCallTimeout(ctx)
	defer cancel()

	messages := make([]cohereMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, cohereMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, cohereMessage{Role: msg.Role, Content: msg.Content})
	}

	body, err := json.Marshal(cohereRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling cohere request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating cohere request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("cohere api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := statusError("cohere", resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var apiResp cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding cohere response: %w: %w", ErrMalformedResponse, err)
	}

	var text strings.Builder
	for _, part := range apiResp.Message.Content {
		if part.Type == "" || part.Type == "text" {
			text.WriteString(part.Text)
		}
	}

	out := &Response{
		Content:      text.String(),
		FinishReason: apiResp.FinishReason,
		InputTokens:  int(apiResp.Usage.Tokens.InputTokens),
		OutputTokens: int(apiResp.Usage.Tokens.OutputTokens),
		Model:        req.Model,
	}
	span.SetAttributes(tallyotel.LLMUsageAttributes(out.InputTokens, out.OutputTokens)...)
	span.SetAttributes(tallyotel.GenAIResponseFinishReason.String(out.FinishReason))
	return out, nil
}
