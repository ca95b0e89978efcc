package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNoChoices = errors.New("llm returned no choices")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func systemMessage(content string) ChatMessage { return ChatMessage{Role: "system", Content: content} }
func userMessage(content string) ChatMessage { return ChatMessage{Role: "user", Content: content} }

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

func (c ChatConfig) Valid() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.Model != ""
}

func (c ChatConfig) endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm response status %d: %s", e.Status, e.Body)
}

// OpenAICompatibleClient speaks the /chat/completions dialect shared by
// OpenAI, Gemini's OpenAI endpoint and most self-hosted gateways.
type OpenAICompatibleClient struct {
	httpClient *http.Client
}

func NewOpenAICompatibleClient(timeout time.Duration) *OpenAICompatibleClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete returns the content of the first choice.
func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	return c.complete(ctx, cfg, completionRequest{Model: cfg.Model, Messages: messages})
}

// CompleteJSON asks the provider for a single JSON object.
func (c *OpenAICompatibleClient) CompleteJSON(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	return c.complete(ctx, cfg, completionRequest{
		Model:          cfg.Model,
		Messages:       messages,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
}

func (c *OpenAICompatibleClient) complete(ctx context.Context, cfg ChatConfig, body completionRequest) (string, error) {
	resp, err := c.post(ctx, cfg, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrNoChoices
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamComplete consumes an SSE completion. onChunk sees every non-empty
// delta in order; the concatenation is returned once the stream ends.
func (c *OpenAICompatibleClient) StreamComplete(
	ctx context.Context,
	cfg ChatConfig,
	messages []ChatMessage,
	onChunk func(chunk string) error,
) (string, error) {
	resp, err := c.post(ctx, cfg, completionRequest{Model: cfg.Model, Messages: messages, Stream: true})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}

	var full strings.Builder
	err = readDeltas(resp.Body, func(delta string) error {
		full.WriteString(delta)
		if onChunk != nil {
			return onChunk(delta)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}

// readDeltas walks "data:" lines until [DONE] or EOF. Lines that do not
// decode are skipped; keep-alive comments are common on some gateways.
func readDeltas(r io.Reader, fn func(delta string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			return nil
		}

		var chunk completionResponse
		if json.Unmarshal([]byte(payload), &chunk) != nil || len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan llm stream failed: %w", err)
	}
	return nil
}

func (c *OpenAICompatibleClient) post(ctx context.Context, cfg ChatConfig, body completionRequest) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	return resp, nil
}
