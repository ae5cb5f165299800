package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"belgaum-backend/internal/models"
)

const sseDone = "[DONE]"

type openaiBackend struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	client     *openai.Client
}

func newOpenAIBackend(cfg Config) *openaiBackend {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		config.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.Endpoint, "/"), "/chat/completions")
	}
	config.HTTPClient = cfg.HTTPClient

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.BaseURL + "/chat/completions"
	}

	return &openaiBackend{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: cfg.HTTPClient,
		client:     openai.NewClientWithConfig(config),
	}
}

func (b *openaiBackend) messages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Transcript)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	for _, m := range req.Transcript {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}

func (b *openaiBackend) stream(ctx context.Context, req Request, emit func(string)) error {
	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model:       b.model,
		Stream:      true,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Messages:    b.messages(req),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	return readSSE(resp.Body, emit)
}

// readSSE consumes "data: <json>" lines until [DONE] or EOF. Events that are
// not valid JSON are skipped.
func readSSE(r io.Reader, emit func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == sseDone {
			return nil
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			emit(text)
		}
	}
	return scanner.Err()
}

func (b *openaiBackend) summarize(ctx context.Context, req Request) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Messages:    b.messages(req),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *openaiBackend) close() error {
	return nil
}
