package vector

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/lysyi3m/rss-triage/app/errkind"
)

const DefaultOpenAIEmbeddingModel = "text-embedding-3-small"

type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultOpenAIEmbeddingModel
	}
	client := openai.NewClient(opts...)
	return &OpenAIEmbedder{client: &client, model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	response, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, errkind.Wrap(errkind.FromStatus(apiErr.StatusCode), "openai", err)
		}
		return nil, errkind.Wrap(errkind.Unknown, "openai", err)
	}
	if len(response.Data) == 0 || len(response.Data[0].Embedding) == 0 {
		return nil, errkind.New(errkind.Parse, "openai", "empty embedding")
	}
	return response.Data[0].Embedding, nil
}
