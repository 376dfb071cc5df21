package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/rss-triage/app/errkind"
)

const (
	DefaultCloudflareBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultEmbeddingModel    = "@cf/baai/bge-m3"
	serviceCloudflare        = "cloudflare"
)

type CloudflareConfig struct {
	AccountID      string
	APIToken       string
	IndexName      string
	EmbeddingModel string
	BaseURL        string
	Timeout        time.Duration
	Retries        int
}

// CloudflareClient embeds text with Workers AI and queries a Vectorize index.
type CloudflareClient struct {
	httpClient *http.Client
	cfg        CloudflareConfig
	backoff    func(attempt int) time.Duration
}

func NewCloudflareClient(httpClient *http.Client, cfg CloudflareConfig) *CloudflareClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCloudflareBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	return &CloudflareClient{
		httpClient: httpClient,
		cfg:        cfg,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * 1200 * time.Millisecond
		},
	}
}

type cfEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *CloudflareClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty embedding text")
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.cfg.BaseURL, c.cfg.AccountID, c.cfg.EmbeddingModel)
	body, err := json.Marshal(map[string]any{"text": []string{text}})
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, url, "application/json", body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errkind.Wrap(errkind.Parse, serviceCloudflare, err)
	}
	if len(result.Data) == 0 {
		return nil, errkind.New(errkind.Parse, serviceCloudflare, "embedding response missing data")
	}

	var values []float64
	if err := json.Unmarshal(result.Data[0], &values); err != nil {
		var wrapped struct {
			Embedding []float64 `json:"embedding"`
		}
		if err := json.Unmarshal(result.Data[0], &wrapped); err != nil {
			return nil, errkind.Wrap(errkind.Parse, serviceCloudflare, err)
		}
		values = wrapped.Embedding
	}
	if len(values) == 0 {
		return nil, errkind.New(errkind.Parse, serviceCloudflare, "empty embedding")
	}
	return values, nil
}

func (c *CloudflareClient) Query(ctx context.Context, values []float64, topK int) ([]Match, error) {
	body, err := json.Marshal(map[string]any{"vector": values, "topK": topK})
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, c.indexURL("query"), "application/json", body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Matches []struct {
			ID       string   `json:"id"`
			Score    *float64 `json:"score"`
			Distance *float64 `json:"distance"`
		} `json:"matches"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errkind.Wrap(errkind.Parse, serviceCloudflare, err)
	}

	matches := make([]Match, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Distance: m.Distance})
	}
	return matches, nil
}

// Upsert writes one vector. The v2 upsert endpoint takes NDJSON.
func (c *CloudflareClient) Upsert(ctx context.Context, id string, values []float64, metadata map[string]any) error {
	line, err := json.Marshal(map[string]any{"id": id, "values": values, "metadata": metadata})
	if err != nil {
		return err
	}
	_, err = c.post(ctx, c.indexURL("upsert"), "application/x-ndjson", append(line, '\n'))
	return err
}

func (c *CloudflareClient) indexURL(op string) string {
	return fmt.Sprintf("%s/accounts/%s/vectorize/v2/indexes/%s/%s", c.cfg.BaseURL, c.cfg.AccountID, c.cfg.IndexName, op)
}

func (c *CloudflareClient) post(ctx context.Context, url, contentType string, body []byte) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		result, err := c.postOnce(ctx, url, contentType, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		kind := errkind.KindOf(err)
		if !kind.Retryable() && kind != errkind.Unknown {
			return nil, err
		}
		if attempt == c.cfg.Retries-1 {
			break
		}

		slog.Debug("Cloudflare request failed, retrying", "attempt", attempt+1, "kind", kind, "error", err)
		select {
		case <-ctx.Done():
			return nil, errkind.Wrap(errkind.Timeout, serviceCloudflare, ctx.Err())
		case <-time.After(c.backoff(attempt)):
		}
	}
	return nil, lastErr
}

func (c *CloudflareClient) postOnce(ctx context.Context, url, contentType string, body []byte) (json.RawMessage, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errkind.Wrap(errkind.HTTP, serviceCloudflare, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errkind.IsTimeout(err) {
			return nil, errkind.Wrap(errkind.Timeout, serviceCloudflare, err)
		}
		return nil, errkind.Wrap(errkind.Unknown, serviceCloudflare, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errkind.Wrap(errkind.Timeout, serviceCloudflare, err)
	}

	if resp.StatusCode >= 400 {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, errkind.New(errkind.FromStatus(resp.StatusCode), serviceCloudflare,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet))
	}

	var envelope cfEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errkind.Wrap(errkind.Parse, serviceCloudflare, err)
	}
	if !envelope.Success {
		msg := "request unsuccessful"
		if len(envelope.Errors) > 0 {
			msg = envelope.Errors[0].Message
		}
		return nil, errkind.New(errkind.HTTP, serviceCloudflare, msg)
	}
	return envelope.Result, nil
}
