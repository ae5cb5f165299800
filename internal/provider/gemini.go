package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"belgaum-backend/internal/models"
)

const geminiReadSize = 4096

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiStreamRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiChunk struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiBackend struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	client     *genai.Client
}

func newGeminiBackend(cfg Config) (*geminiBackend, error) {
	b := &geminiBackend{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: cfg.HTTPClient,
	}

	// The SDK client serves summarization only and always talks to Google.
	if cfg.APIKey != "" {
		client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		b.client = client
	}
	return b, nil
}

func (b *geminiBackend) streamURL() string {
	return fmt.Sprintf("%s/%s:streamGenerateContent?key=%s", b.endpoint, b.model, url.QueryEscape(b.apiKey))
}

func (b *geminiBackend) stream(ctx context.Context, req Request, emit func(string)) error {
	payload := geminiStreamRequest{
		Contents: make([]geminiContent, 0, len(req.Transcript)),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	for _, m := range req.Transcript {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		payload.Contents = append(payload.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.streamURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	return readObjects(resp.Body, emit)
}

// readObjects feeds the body through an objectScanner, emitting the text of
// each complete object as soon as its braces balance.
func readObjects(r io.Reader, emit func(string)) error {
	var sc objectScanner
	buf := make([]byte, geminiReadSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			sc.Write(buf[:n])
			for {
				obj, ok := sc.Next()
				if !ok {
					break
				}
				if text := chunkText(obj); text != "" {
					emit(text)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func chunkText(obj []byte) string {
	var chunk geminiChunk
	if err := json.Unmarshal(obj, &chunk); err != nil {
		return ""
	}
	if len(chunk.Candidates) == 0 || len(chunk.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return chunk.Candidates[0].Content.Parts[0].Text
}

func (b *geminiBackend) summarize(ctx context.Context, req Request) (string, error) {
	if b.client == nil {
		return "", errors.New("gemini summarization requires an API key")
	}

	model := b.client.GenerativeModel(b.model)
	model.SetTemperature(float32(req.Temperature))
	model.SetMaxOutputTokens(int32(req.MaxTokens))
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(flattenTranscript(req.Transcript)))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	return extractText(resp), nil
}

func (b *geminiBackend) close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func flattenTranscript(msgs []models.ChatMessage) string {
	var sb strings.Builder
	for _, m := range msgs {
		label := "User"
		if m.Role == models.RoleAssistant {
			label = "Assistant"
		}
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
