package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	langpkg "revoice/internal/language"
	"revoice/internal/logging"
)

// Options configures the translation engine endpoint.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	SourceLanguage string
	TargetLanguage string
}

// Translator converts subtitle text between languages through a chat
// completion endpoint, fronted by the persistent cache.
type Translator struct {
	client *openai.Client
	model  string
	prompt string
	cache  *Cache
	logger *slog.Logger
}

// New builds a translator. The cache may not be nil.
func New(opts Options, cache *Cache, logger *slog.Logger) *Translator {
	cfg := openai.DefaultConfig(opts.APIKey)
	if strings.TrimSpace(opts.BaseURL) != "" {
		cfg.BaseURL = opts.BaseURL
	}
	prompt := fmt.Sprintf(
		"You are a professional subtitle translator. Translate the user's text from %s to %s. Reply with only the translated text, keeping the register and length close to the original.",
		langpkg.DisplayName(opts.SourceLanguage), langpkg.DisplayName(opts.TargetLanguage))
	return &Translator{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		prompt: prompt,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "translate"),
	}
}

// Translate returns the target-language rendition of text. Engine failures
// are logged and fall back to the source text so a single bad utterance
// never aborts a segment; successful translations are cached incrementally.
func (t *Translator) Translate(ctx context.Context, text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return trimmed
	}
	if cached, ok := t.cache.Lookup(trimmed); ok {
		return cached
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: t.prompt},
			{Role: openai.ChatMessageRoleUser, Content: trimmed},
		},
	})
	if err != nil {
		t.logger.Warn("translation failed, keeping source text",
			logging.String("text", trimmed),
			logging.Error(err))
		return trimmed
	}
	if len(resp.Choices) == 0 {
		t.logger.Warn("translation returned no choices", logging.String("text", trimmed))
		return trimmed
	}
	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated == "" {
		return trimmed
	}
	if err := t.cache.Store(trimmed, translated); err != nil {
		t.logger.Warn("failed to persist translation cache", logging.Error(err))
	}
	return translated
}
