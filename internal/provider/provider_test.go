package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"belgaum-backend/internal/models"
)

func testRequest() Request {
	return Request{
		Transcript: []models.ChatMessage{
			{Role: models.RoleAssistant, Content: "Welcome", Timestamp: 1},
			{Role: models.RoleUser, Content: "Hello", Timestamp: 2},
		},
		SystemPrompt: "be helpful",
		Temperature:  0.2,
		MaxTokens:    500,
	}
}

func collect() (*[]string, func(string)) {
	var got []string
	return &got, func(s string) { got = append(got, s) }
}

func newAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend(" OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, BackendOpenAI, b)

	b, err = ParseBackend("gemini")
	require.NoError(t, err)
	assert.Equal(t, BackendGemini, b)

	_, err = ParseBackend("claude")
	assert.Error(t, err)
}

func TestOpenAIStream_EmitsDeltasUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream)
		assert.Equal(t, "gpt-test", body.Model)
		require.Len(t, body.Messages, 3)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "be helpful", body.Messages[0].Content)
		assert.Equal(t, "assistant", body.Messages[1].Role)
		assert.Equal(t, "user", body.Messages[2].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		lines := []string{
			`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
			`: keep-alive`,
			`data: not json`,
			`data: {"choices":[]}`,
			`  data: {"choices":[{"delta":{"content":"lo"}}]}  `,
			`data: [DONE]`,
			`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
		}
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n\n", l)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer srv.Close()

	a := newAdapter(t, Config{Backend: BackendOpenAI, Model: "gpt-test", Endpoint: srv.URL + "/v1/chat/completions", APIKey: "test-key"})

	got, emit := collect()
	require.NoError(t, a.StreamReply(context.Background(), testRequest(), emit))
	assert.Equal(t, []string{"Hel", "lo"}, *got)
	assert.Equal(t, "Hello", strings.Join(*got, ""))
}

func TestOpenAIStream_Non200EmitsErrorFragment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := newAdapter(t, Config{Backend: BackendOpenAI, Model: "gpt-test", Endpoint: srv.URL})

	got, emit := collect()
	err := a.StreamReply(context.Background(), testRequest(), emit)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
	assert.Equal(t, []string{"OpenAI Connection Error."}, *got)
}

func TestGeminiStream_ConnectionErrorEmitsErrorFragment(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	a := newAdapter(t, Config{Backend: BackendGemini, Model: "gemini-test", Endpoint: endpoint})

	got, emit := collect()
	err := a.StreamReply(context.Background(), testRequest(), emit)
	assert.Error(t, err)
	assert.Equal(t, []string{"Gemini Connection Error."}, *got)
}

func TestGeminiStream_ParsesConcatenatedObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))

		var body geminiStreamRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 2)
		assert.Equal(t, "model", body.Contents[0].Role)
		assert.Equal(t, "user", body.Contents[1].Role)
		require.NotNil(t, body.SystemInstruction)
		assert.Equal(t, "be helpful", body.SystemInstruction.Parts[0].Text)
		assert.Equal(t, 500, body.GenerationConfig.MaxOutputTokens)

		flusher, _ := w.(http.Flusher)
		pieces := []string{
			`[{"candidates":[{"content":{"parts":[{"text":"Hi {there}"}]}}]}`,
			",\r\n",
			`{"candidates":[{"content":{"par`,
			`ts":[{"text":" friend"}]}}]}`,
			`,{malformed}`,
			`]`,
		}
		for _, p := range pieces {
			io.WriteString(w, p)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer srv.Close()

	a := newAdapter(t, Config{Backend: BackendGemini, Model: "gemini-test", Endpoint: srv.URL + "/models/", APIKey: ""})
	a.impl.(*geminiBackend).apiKey = "k"

	got, emit := collect()
	require.NoError(t, a.StreamReply(context.Background(), testRequest(), emit))
	assert.Equal(t, []string{"Hi {there}", " friend"}, *got)
}

// chunkedReader returns one chunk per Read call.
type chunkedReader struct {
	chunks []string
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if c.chunks[0] == "" {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestGeminiStream_ObjectSplitAcrossReads(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body: io.NopCloser(&chunkedReader{chunks: []string{
				`{"candidates":[{"content":{"parts":[{"text":"a"}]}}]}{"candidates":[{"con`,
				`tent":{"parts":[{"text":"b"}]}}]}`,
			}}),
			Header: make(http.Header),
		}, nil
	})}

	a := newAdapter(t, Config{Backend: BackendGemini, Model: "m", Endpoint: "http://gemini.invalid", HTTPClient: client})

	got, emit := collect()
	require.NoError(t, a.StreamReply(context.Background(), testRequest(), emit))
	assert.Equal(t, []string{"a", "b"}, *got)
}

func TestObjectScanner(t *testing.T) {
	var sc objectScanner

	sc.Write([]byte(`{"a":1}{"b":`))
	obj, ok := sc.Next()
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(obj))

	_, ok = sc.Next()
	assert.False(t, ok)
	assert.Equal(t, len(`{"b":`), sc.Len())

	sc.Write([]byte(`2}`))
	obj, ok = sc.Next()
	require.True(t, ok)
	assert.JSONEq(t, `{"b":2}`, string(obj))

	_, ok = sc.Next()
	assert.False(t, ok)
	assert.Zero(t, sc.Len())
}

func TestObjectScanner_BracesInsideStrings(t *testing.T) {
	var sc objectScanner
	sc.Write([]byte(`[{"t":"a}b{\"}"},`))

	obj, ok := sc.Next()
	require.True(t, ok)
	assert.Equal(t, `{"t":"a}b{\"}"}`, string(obj))

	_, ok = sc.Next()
	assert.False(t, ok)
}

func TestStreamReply_CancelledContextEmitsNothing(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	a := newAdapter(t, Config{Backend: BackendOpenAI, Model: "gpt-test", Endpoint: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	got, emit := collect()
	err := a.StreamReply(ctx, testRequest(), emit)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, *got, "OpenAI Connection Error.")
}

func TestSummarize_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var body struct {
			Stream    bool `json:"stream"`
			MaxTokens int  `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body.Stream)
		assert.Equal(t, 150, body.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"I am enquiring about RAG."},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	a := newAdapter(t, Config{Backend: BackendOpenAI, Model: "gpt-test", Endpoint: srv.URL + "/v1/chat/completions", APIKey: "k"})

	req := testRequest()
	req.MaxTokens = 150
	text, err := a.Summarize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "I am enquiring about RAG.", text)
}

func TestSummarize_GeminiWithoutKey(t *testing.T) {
	a := newAdapter(t, Config{Backend: BackendGemini, Model: "m", Endpoint: "http://gemini.invalid"})

	_, err := a.Summarize(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestFlattenTranscript(t *testing.T) {
	out := flattenTranscript(testRequest().Transcript)
	assert.Equal(t, "Assistant: Welcome\nUser: Hello\n", out)
}
