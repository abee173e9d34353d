package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/grantscan/internal/report"
)

// Compile-time interface check
var _ Summarizer = (*OpenAI)(nil)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

const maxSummaryTokens = 600

const systemPrompt = "You are a friendly Irish grants advisor. Be warm, specific, and actionable. " +
	"Use plain language and the euro symbol. Address the reader as \"you\"."

// CompletionsService defines the chat completion call used by OpenAI.
// This abstraction enables testing without calling the real API.
type CompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI writes summaries with an OpenAI chat model.
type OpenAI struct {
	completions CompletionsService
	model       openai.ChatModel
}

// NewOpenAI creates a summarizer for the given key and model. An empty
// model selects DefaultModel.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = string(DefaultModel)
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		completions: client.Chat.Completions,
		model:       openai.ChatModel(model),
	}
}

// Summarize asks the model for a summary of in.
func (o *OpenAI) Summarize(ctx context.Context, in Input) (string, error) {
	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(Prompt(in)),
		}),
		Model:     openai.F(o.model),
		MaxTokens: openai.Int(maxSummaryTokens),
	})
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("summary generation failed: no choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("summary generation failed: empty content")
	}
	return text, nil
}

// ModelName returns the chat model name
func (o *OpenAI) ModelName() string {
	return string(o.model)
}

// Prompt is the user message sent to the model.
func Prompt(in Input) string {
	var b strings.Builder
	b.WriteString("Write a personalised 3-4 paragraph summary for this person's grant results.\n\n")
	b.WriteString("PROFILE:\n")
	b.WriteString(describeProfile(in.Profile))
	b.WriteString("\n\nTOP MATCHED GRANTS/CREDITS:\n")
	b.WriteString(describeGrants(in.Matches))
	b.WriteString("\n\nTOTAL POTENTIAL VALUE: ")
	b.WriteString(report.FormatEuro(in.TotalValue))
	b.WriteString(`

Write a personalised summary that:
1. Acknowledges their specific situation (age, family, employment, etc.)
2. Highlights the 3-4 most impactful grants/credits they should prioritise
3. Mentions any credits they might be able to backdate for up to 4 years
4. Ends with a clear first step they should take

Keep it under 200 words. Don't use bullet points. Write flowing paragraphs.`)
	return b.String()
}
