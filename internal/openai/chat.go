package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is used for summarization and title generation
	DefaultChatModel = "qwen3-max"
	// DefaultVisionModel is used for page-image text extraction
	DefaultVisionModel = "qwen-vl-ocr-2025-11-20"

	summarizeMaxInputChars = 12000
	summarizeMaxTokens     = 4000
	ocrMaxTokens           = 2000
)

const summarizeSystemPrompt = `You are a professional document analysis assistant. Merge and summarize the content of the following document pages into one well-structured, complete Markdown document. Requirements:
1. Preserve the important information of the source text
2. Organize the structure sensibly, using appropriate heading levels
3. If chart or figure descriptions are present, integrate them where they belong
4. Write the output in English
5. Use well-formed, standards-compliant Markdown`

const titleSystemPrompt = `You generate document titles. Reply with a single short title for the given document, no quotes, no markdown, no explanation.`

const ocrPrompt = `Analyze this image in detail. If it contains text, extract all of it accurately; if it is a chart or figure, describe its content and meaning. Reply in English.`

// truncateToRuneBoundary cuts s to at most max bytes without splitting a
// multi-byte rune, stepping back to the nearest rune start.
func truncateToRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ChatClient issues summarization, title-generation and vision OCR calls
// against an OpenAI-compatible endpoint.
type ChatClient struct {
	client      *openai.Client
	chatModel   string
	visionModel string
}

// NewChatClient creates a ChatClient from the shared endpoint configuration.
func NewChatClient(cfg Config) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	} else {
		clientCfg.BaseURL = DefaultBaseURL
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = DefaultVisionModel
	}

	return &ChatClient{
		client:      openai.NewClientWithConfig(clientCfg),
		chatModel:   chatModel,
		visionModel: visionModel,
	}
}

// Summarize merges per-page texts into one canonical markdown document. The
// optional directive lets the caller steer the synthesis.
func (c *ChatClient) Summarize(ctx context.Context, pages []string, directive string) (string, error) {
	if len(pages) == 0 {
		return "", errors.New("no page content to summarize")
	}

	parts := make([]string, 0, len(pages))
	for i, content := range pages {
		parts = append(parts, fmt.Sprintf("Page %d content:\n%s", i+1, content))
	}
	userContent := strings.Join(parts, "\n\n")

	if directive != "" {
		userContent = "Instruction: " + directive + "\n\n" + userContent
	}

	// Truncate overly long input rather than failing the whole document.
	if len(userContent) > summarizeMaxInputChars {
		userContent = truncateToRuneBoundary(userContent, summarizeMaxInputChars) + "\n\n[content truncated...]"
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		MaxTokens: summarizeMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summarization returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// TitleOf generates a short display title for a document.
func (c *ChatClient) TitleOf(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	input := truncateToRuneBoundary(text, summarizeMaxInputChars)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: titleSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		MaxTokens: 64,
	})
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("title generation returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ExtractImageText runs the vision model over a base64-encoded page image and
// returns the extracted text.
func (c *ChatClient) ExtractImageText(ctx context.Context, imageBase64 string) (string, error) {
	if imageBase64 == "" {
		return "", errors.New("image data cannot be empty")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: ocrPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/jpeg;base64," + imageBase64,
						},
					},
				},
			},
		},
		MaxTokens: ocrMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("image text extraction failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("image text extraction returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
