package oracle

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/lysyi3m/rss-triage/app/errkind"
)

const serviceOpenAI = "openai"

// OpenAICompleter talks to the OpenAI chat completions API or any provider
// exposing the same API under a different base URL.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAICompleter{client: &client, model: model}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(response.Choices) == 0 {
		return "", errkind.New(errkind.Parse, serviceOpenAI, "no choices in response")
	}
	return response.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return errkind.Wrapf(errkind.FromStatus(apiErr.StatusCode), serviceOpenAI, err, "HTTP %d", apiErr.StatusCode)
	}
	if errkind.IsTimeout(err) {
		return errkind.Wrap(errkind.Timeout, serviceOpenAI, err)
	}
	return errkind.Wrap(errkind.Unknown, serviceOpenAI, err)
}
