package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lysyi3m/rss-triage/app/errkind"
)

const serviceAnthropic = "anthropic"

type AnthropicCompleter struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicCompleter(apiKey, baseURL, model string) *AnthropicCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicCompleter{client: &client, model: model, maxTokens: 4096}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	fullPrompt := prompt
	if system != "" {
		fullPrompt = fmt.Sprintf("%s\n\n---\n\n%s", system, prompt)
	}

	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fullPrompt)),
		},
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", errkind.New(errkind.Parse, serviceAnthropic, "no text blocks in response")
	}
	return text, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return errkind.Wrapf(errkind.FromStatus(apiErr.StatusCode), serviceAnthropic, err, "HTTP %d", apiErr.StatusCode)
	}
	if errkind.IsTimeout(err) {
		return errkind.Wrap(errkind.Timeout, serviceAnthropic, err)
	}
	return errkind.Wrap(errkind.Unknown, serviceAnthropic, err)
}
