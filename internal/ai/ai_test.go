package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		resp := openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGPT(srv *httptest.Server) *GPTService {
	return NewGPTService(GPTConfig{
		APIKey:    "test",
		BaseURL:   srv.URL,
		Model:     "test-model",
		MaxTokens: 100,
		MaxTags:   3,
	}, zap.NewNop())
}

func TestGPTAnalyzeParsesStructuredResponse(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"title":"March Invoice","tags":["Finance","#bills","finance","work","extra"],"summary":"Pay it."}`)

	got, err := newTestGPT(srv).Analyze(context.Background(), "pay the march invoice")
	require.NoError(t, err)
	assert.Equal(t, "March Invoice", got.Title)
	assert.Equal(t, []string{"finance", "bills", "work"}, got.Tags)
	assert.Equal(t, "Pay it.", got.Summary)
}

func TestGPTAnalyzeFallsBackOnServerError(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "")

	got, err := newTestGPT(srv).Analyze(context.Background(), "Team meeting\nDiscuss the project #q3")
	require.NoError(t, err)
	assert.Equal(t, "Team meeting", got.Title)
	assert.Equal(t, []string{"q3", "work"}, got.Tags)
}

func TestGPTAnalyzeFallsBackOnMalformedJSON(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "sure! here are some tags")

	got, err := newTestGPT(srv).Analyze(context.Background(), "Grocery run")
	require.NoError(t, err)
	assert.Equal(t, "Grocery run", got.Title)
	assert.Equal(t, []string{"shopping"}, got.Tags)
}

func TestGPTGenerateTagsAndTitle(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "Travel, Hotel , , booking, flights")
	gpt := newTestGPT(srv)

	tags, err := gpt.GenerateTags(context.Background(), "trip")
	require.NoError(t, err)
	assert.Equal(t, []string{"travel", "hotel", "booking"}, tags)

	srv = chatServer(t, http.StatusOK, `"Weekend Trip"`)
	title, err := newTestGPT(srv).GenerateTitle(context.Background(), "trip")
	require.NoError(t, err)
	assert.Equal(t, "Weekend Trip", title)
}

func TestGPTSummarizeReturnsErrors(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "")
	_, err := newTestGPT(srv).Summarize(context.Background(), "text")
	assert.Error(t, err)

	srv = chatServer(t, http.StatusOK, "   ")
	_, err = newTestGPT(srv).FixFormatting(context.Background(), "text")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestSimpleService(t *testing.T) {
	s := NewSimpleService(5)
	ctx := context.Background()

	tags, err := s.GenerateTags(ctx, "Book the flight and hotel #Holiday, then study")
	require.NoError(t, err)
	assert.Equal(t, []string{"holiday", "education", "personal", "travel"}, tags)

	title, err := s.GenerateTitle(ctx, "\n\n  First line  \nsecond")
	require.NoError(t, err)
	assert.Equal(t, "First line", title)

	title, err = s.GenerateTitle(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, "Untitled", title)

	fixed, err := s.FixFormatting(ctx, "a  \r\n\n\n\n b\t\n")
	require.NoError(t, err)
	assert.Equal(t, "a\n\n b", fixed)
}
