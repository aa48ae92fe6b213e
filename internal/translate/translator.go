package translate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	log "github.com/sirupsen/logrus"

	"transbooks/internal/costtracker"
)

// Translator issues one remote translation call. Implementations are
// stateless between calls; the batch layer owns all coordination.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// systemPrompt instructs the model to translate EN->RU while leaving
// markdown structure and <<IMG_N>> placeholders untouched.
const systemPrompt = `You are a professional book translator. Translate the text from English to Russian.
Rules:
1. Preserve ALL Markdown markup: headings (#), lists (-), tables (|), emphasis (**bold**, *italic*), links, code blocks.
2. Do not add anything of your own.
3. Translate only the text, leaving markup and code untouched.
4. Transliterate proper names and technical terms or keep them in the original, depending on context.
5. Keep paragraphs and line breaks exactly as in the original.
6. Placeholders of the form <<IMG_N>> are images. Leave them UNCHANGED in the same positions in the text.`

// OpenAITranslator implements Translator using the OpenAI chat completions API.
type OpenAITranslator struct {
	client *openai.Client
	model  string
	usage  *costtracker.Tracker
}

// NewOpenAITranslator creates the OpenAI-backed translator. usage may be nil
// when token accounting is not wanted.
func NewOpenAITranslator(apiKey, model string, usage *costtracker.Tracker) (*OpenAITranslator, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	log.Infof("OpenAI translator initialized with model %s", model)
	return &OpenAITranslator{client: openai.NewClient(apiKey), model: model, usage: usage}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, text string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: 0.3, // Lower temperature for more consistent translations
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error translating chunk: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	if t.usage != nil {
		t.usage.Record(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Translator = (*OpenAITranslator)(nil)

// TranslateOne translates a short standalone string (e.g. a title). A failure
// is tolerated by falling back to the untranslated input, since a missing
// title translation should never fail a whole job.
func TranslateOne(ctx context.Context, tr Translator, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	out, err := tr.Translate(ctx, text)
	if err != nil {
		log.Warnf("Single-string translation failed, keeping original: %v", err)
		return text
	}
	out = strings.TrimSpace(out)
	out = strings.Trim(out, `"'`)
	if out == "" {
		return text
	}
	return out
}
