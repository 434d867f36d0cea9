package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type GPTConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxTags     int
}

// GPTService calls an OpenAI-compatible chat completion API. Analyze,
// GenerateTitle and GenerateTags fall back to SimpleService when the call
// fails; Summarize and FixFormatting return the error.
type GPTService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	maxTags     int
	fallback    *SimpleService
	logger      *zap.Logger
}

func NewGPTService(cfg GPTConfig, logger *zap.Logger) *GPTService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &GPTService{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxTags:     cfg.MaxTags,
		fallback:    NewSimpleService(cfg.MaxTags),
		logger:      logger,
	}
}

const analyzePrompt = `Analyze the following note and provide a structured analysis with:
- A short title (max 8 words)
- Relevant lowercase tags (max %d)
- A brief summary (max 2 sentences)

Return the response as a JSON object with this structure:
{
    "title": "short title",
    "tags": ["tag1", "tag2", ...],
    "summary": "brief summary"
}

Note: %s`

func (c *GPTService) Analyze(ctx context.Context, text string) (Analysis, error) {
	response, err := c.complete(ctx, fmt.Sprintf(analyzePrompt, c.maxTags, text), true)
	if err != nil {
		c.logger.Error("Failed to get GPT analysis", zap.Error(err))
		return c.fallback.Analyze(ctx, text)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(response), &analysis); err != nil {
		c.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", response))
		return c.fallback.Analyze(ctx, text)
	}

	analysis.Title = strings.TrimSpace(analysis.Title)
	if analysis.Title == "" {
		analysis.Title = simpleTitle(text)
	}
	analysis.Tags = normalizeTags(analysis.Tags, c.maxTags)
	analysis.Summary = strings.TrimSpace(analysis.Summary)
	return analysis, nil
}

func (c *GPTService) GenerateTitle(ctx context.Context, text string) (string, error) {
	prompt := "Write a short title (max 8 words) for the following note. Reply with the title only.\n\nNote: " + text
	response, err := c.complete(ctx, prompt, false)
	if err != nil {
		c.logger.Error("Failed to generate title", zap.Error(err))
		return c.fallback.GenerateTitle(ctx, text)
	}
	return strings.Trim(response, "\"' \n"), nil
}

func (c *GPTService) GenerateTags(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf("List up to %d lowercase tags for the following note, comma separated. Reply with the tags only.\n\nNote: %s",
		c.maxTags, text)
	response, err := c.complete(ctx, prompt, false)
	if err != nil {
		c.logger.Error("Failed to generate tags", zap.Error(err))
		return c.fallback.GenerateTags(ctx, text)
	}
	return normalizeTags(strings.Split(response, ","), c.maxTags), nil
}

func (c *GPTService) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize the following note in at most two sentences.\n\nNote: " + text
	response, err := c.complete(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return response, nil
}

func (c *GPTService) FixFormatting(ctx context.Context, text string) (string, error) {
	prompt := "Fix the spelling, punctuation and formatting of the following note. Keep its meaning and language. Reply with the corrected text only.\n\n" + text
	response, err := c.complete(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("fix formatting: %w", err)
	}
	return response, nil
}

func (c *GPTService) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
