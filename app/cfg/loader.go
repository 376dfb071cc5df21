package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lysyi3m/rss-triage/app/errkind"
	"github.com/lysyi3m/rss-triage/app/ledger"
	"github.com/lysyi3m/rss-triage/app/oracle"
	"github.com/lysyi3m/rss-triage/app/pipeline"
	"github.com/lysyi3m/rss-triage/app/vector"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

var defaultModels = map[string]string{
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderAnthropic:  "claude-3-5-haiku-latest",
	ProviderCompatible: "gpt-4o-mini",
}

type rawCfg struct {
	// Storage and sources
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/rss-triage.db" description:"SQLite database file"`
	FeedsDir string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing source configuration files"`

	// HTTP server and scheduling
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://triage.example.com)"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"4" description:"Number of concurrent scoring workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"900" description:"Seconds between ingest runs"`
	Once              bool   `long:"once" env:"RUN_ONCE" description:"Run a single ingest pass and exit"`

	// Fetching
	UserAgent       string `long:"user-agent" env:"USER_AGENT" default:"RSS Triage/1.0" description:"User agent string for HTTP requests"`
	FetchInterval   int    `long:"fetch-interval" env:"FETCH_INTERVAL" default:"180" description:"Minutes between fetches of the same source"`
	MaxEntries      int    `long:"max-entries" env:"MAX_ENTRIES" default:"200" description:"Maximum entries taken from each feed"`
	SeenPrefetch    int    `long:"seen-prefetch" env:"SEEN_PREFETCH" default:"500" description:"Recent record keys loaded into the seen set"`
	MaxContentRunes int    `long:"max-content" env:"MAX_CONTENT_CHARS" default:"12000" description:"Article characters sent to the oracle (0 = unlimited)"`

	// Scoring oracle
	LLMProvider          string  `long:"llm-provider" env:"LLM_PROVIDER" default:"openai" choice:"openai" choice:"anthropic" choice:"compatible" description:"Scoring model provider"`
	LLMModel             string  `long:"llm-model" env:"LLM_MODEL" description:"Scoring model name (provider default when empty)"`
	LLMBaseURL           string  `long:"llm-base-url" env:"LLM_BASE_URL" description:"API base URL (required for compatible providers)"`
	OpenAIAPIKey         string  `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI or compatible API key"`
	AnthropicAPIKey      string  `long:"anthropic-api-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key"`
	LLMTimeout           int     `long:"llm-timeout" env:"LLM_TIMEOUT" default:"60" description:"Seconds per oracle call"`
	LLMRetries           int     `long:"llm-retries" env:"LLM_RETRIES" default:"2" description:"Retries for transient oracle failures"`
	LLMConcurrency       int     `long:"llm-concurrency" env:"LLM_CONCURRENCY" default:"3" description:"Maximum concurrent oracle calls"`
	LLMRequestsPerMinute int     `long:"llm-rpm" env:"LLM_RPM" default:"0" description:"Oracle requests per minute (0 = unlimited)"`
	SummaryLanguage      string  `long:"summary-language" env:"SUMMARY_LANGUAGE" default:"Simplified Chinese" description:"Language of generated titles and summaries"`
	SystemPrompt         string  `long:"system-prompt" env:"SYSTEM_PROMPT" description:"Override for the scoring system prompt"`
	FeaturedPrompt       string  `long:"featured-prompt" env:"FEATURED_PROMPT" description:"Override for the featured curation prompt"`
	PublishThreshold     float64 `long:"publish-threshold" env:"PUBLISH_THRESHOLD" default:"6.0" description:"Minimum score for a record to be stored"`
	NoCuration           bool    `long:"no-curation" env:"CURATION_DISABLED" description:"Disable featured curation after each run"`

	// Failed-item ledger
	LedgerMaxItems   int `long:"ledger-max-items" env:"LEDGER_MAX_ITEMS" default:"50" description:"Failed items kept per source"`
	LedgerRetryLimit int `long:"ledger-retry-budget" env:"LEDGER_RETRY_BUDGET" default:"5" description:"Failed items retried per source and run"`
	LedgerMaxAgeDays int `long:"ledger-max-age" env:"LEDGER_MAX_AGE_DAYS" default:"7" description:"Days before a failed item is dropped"`
	LedgerMissLimit  int `long:"ledger-miss-limit" env:"LEDGER_MISS_LIMIT" default:"3" description:"Fetches a failed item may be absent before it is dropped"`

	// Semantic dedup
	NoVectorDedup       bool    `long:"no-vector-dedup" env:"VECTOR_DEDUP_DISABLED" description:"Disable near-duplicate suppression"`
	VectorProvider      string  `long:"vector-provider" env:"VECTOR_PROVIDER" default:"vectorize" choice:"vectorize" choice:"local" description:"Similarity index provider"`
	CFAccountID         string  `long:"cf-account-id" env:"CF_ACCOUNT_ID" description:"Cloudflare account id"`
	CFAPIToken          string  `long:"cf-api-token" env:"CF_API_TOKEN" description:"Cloudflare API token"`
	CFIndexName         string  `long:"cf-index" env:"CF_VECTORIZE_INDEX" description:"Cloudflare Vectorize index name"`
	EmbeddingModel      string  `long:"embedding-model" env:"EMBEDDING_MODEL" description:"Embedding model (provider default when empty)"`
	EmbeddingBaseURL    string  `long:"embedding-base-url" env:"EMBEDDING_BASE_URL" description:"OpenAI-compatible embeddings base URL for the local index (defaults to OpenAI)"`
	VectorTopK          int     `long:"vector-top-k" env:"VECTOR_TOP_K" default:"5" description:"Neighbours fetched per similarity query"`
	SimilarityThreshold float64 `long:"similarity-threshold" env:"SIMILARITY_THRESHOLD" default:"0.88" description:"Similarity at which an item is a near-duplicate"`
	VectorMetric        string  `long:"vector-metric" env:"VECTOR_METRIC" default:"cosine" choice:"cosine" choice:"euclidean" choice:"dot-product" description:"Index distance metric"`

	// Notifications
	TelegramToken  string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token for failure notices"`
	TelegramChatID int64  `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat receiving failure notices"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Shanghai)"`
	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level (debug, info, warn, error)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the process arguments and environment. A nil config with a nil
// error means help was printed.
func Load() (*Cfg, error) {
	cfg, err := Parse(os.Args[1:])
	if err != nil || cfg == nil {
		return cfg, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func Parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:               raw.DBPath,
		FeedsDir:             raw.FeedsDir,
		Port:                 raw.Port,
		BaseUrl:              strings.TrimRight(raw.BaseUrl, "/"),
		APIAccessKey:         raw.APIAccessKey,
		WorkerCount:          raw.WorkerCount,
		SchedulerInterval:    time.Duration(raw.SchedulerInterval) * time.Second,
		Once:                 raw.Once,
		UserAgent:            raw.UserAgent,
		FetchInterval:        time.Duration(raw.FetchInterval) * time.Minute,
		MaxEntries:           raw.MaxEntries,
		SeenPrefetch:         raw.SeenPrefetch,
		MaxContentRunes:      raw.MaxContentRunes,
		LLMProvider:          raw.LLMProvider,
		LLMModel:             cmp.Or(raw.LLMModel, defaultModels[raw.LLMProvider]),
		LLMBaseURL:           raw.LLMBaseURL,
		OpenAIAPIKey:         raw.OpenAIAPIKey,
		AnthropicAPIKey:      raw.AnthropicAPIKey,
		LLMTimeout:           time.Duration(raw.LLMTimeout) * time.Second,
		LLMRetries:           raw.LLMRetries,
		LLMConcurrency:       raw.LLMConcurrency,
		LLMRequestsPerMinute: raw.LLMRequestsPerMinute,
		SummaryLanguage:      raw.SummaryLanguage,
		SystemPrompt:         raw.SystemPrompt,
		FeaturedPrompt:       raw.FeaturedPrompt,
		PublishThreshold:     raw.PublishThreshold,
		Curate:               !raw.NoCuration,
		LedgerMaxItems:       raw.LedgerMaxItems,
		LedgerRetryLimit:     raw.LedgerRetryLimit,
		LedgerMaxAge:         time.Duration(raw.LedgerMaxAgeDays) * 24 * time.Hour,
		LedgerMissLimit:      raw.LedgerMissLimit,
		VectorDedup:          !raw.NoVectorDedup,
		VectorProvider:       raw.VectorProvider,
		CFAccountID:          raw.CFAccountID,
		CFAPIToken:           raw.CFAPIToken,
		CFIndexName:          raw.CFIndexName,
		EmbeddingModel:       raw.EmbeddingModel,
		EmbeddingBaseURL:     strings.TrimRight(raw.EmbeddingBaseURL, "/"),
		VectorTopK:           raw.VectorTopK,
		SimilarityThreshold:  raw.SimilarityThreshold,
		VectorMetric:         raw.VectorMetric,
		TelegramToken:        raw.TelegramToken,
		TelegramChatID:       raw.TelegramChatID,
		Timezone:             raw.Timezone,
		LogLevel:             raw.LogLevel,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	return cfg, nil
}

// Validate reports missing or inconsistent settings as a configuration error.
// Vector dedup problems only disable dedup, since it fails open.
func (c *Cfg) Validate() error {
	var problems []string

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderCompatible:
		if c.OpenAIAPIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required for the compatible provider")
		}
		if c.LLMBaseURL == "" {
			problems = append(problems, "LLM_BASE_URL is required for the compatible provider")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			problems = append(problems, "ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown llm provider %q", c.LLMProvider))
	}

	if c.PublishThreshold < 0 || c.PublishThreshold > 10 {
		problems = append(problems, "publish threshold must be between 0 and 10")
	}
	if c.WorkerCount < 1 {
		problems = append(problems, "worker count must be at least 1")
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		problems = append(problems, "TELEGRAM_CHAT_ID is required when a Telegram token is set")
	}

	if len(problems) > 0 {
		return errkind.New(errkind.Config, "config", strings.Join(problems, "; "))
	}

	c.checkVectorDedup()
	return nil
}

func (c *Cfg) checkVectorDedup() {
	if !c.VectorDedup {
		return
	}
	switch c.VectorProvider {
	case VectorProviderVectorize:
		if c.CFAccountID == "" || c.CFAPIToken == "" || c.CFIndexName == "" {
			slog.Warn("Vector dedup disabled: Cloudflare account id, API token and index name are required")
			c.VectorDedup = false
		}
	case VectorProviderLocal:
		if c.OpenAIAPIKey == "" {
			slog.Warn("Vector dedup disabled: the local index needs OPENAI_API_KEY for embeddings")
			c.VectorDedup = false
		}
	}
}

func (c *Cfg) PipelineSettings() pipeline.Settings {
	return pipeline.Settings{
		PublishThreshold: c.PublishThreshold,
		Workers:          c.WorkerCount,
		Ledger: ledger.Limits{
			MaxItems:    c.LedgerMaxItems,
			RetryBudget: c.LedgerRetryLimit,
			MaxAge:      c.LedgerMaxAge,
			MaxMiss:     c.LedgerMissLimit,
		},
		FetchInterval:   c.FetchInterval,
		MaxEntries:      c.MaxEntries,
		SeenPrefetch:    c.SeenPrefetch,
		MaxContentRunes: c.MaxContentRunes,
		Dedup: pipeline.DedupSettings{
			Enabled:   c.VectorDedup,
			TopK:      c.VectorTopK,
			Threshold: c.SimilarityThreshold,
			Metric:    c.VectorMetric,
		},
		Curate: c.Curate,
	}
}

func (c *Cfg) RetryConfig() oracle.RetryConfig {
	rc := oracle.DefaultRetryConfig()
	rc.MaxRetries = c.LLMRetries
	rc.Timeout = c.LLMTimeout
	rc.RequestsPerMinute = c.LLMRequestsPerMinute
	rc.MaxConcurrentCalls = c.LLMConcurrency
	return rc
}

func (c *Cfg) Prompts() oracle.Prompts {
	return oracle.Prompts{
		System:   c.SystemPrompt,
		Featured: c.FeaturedPrompt,
		Language: c.SummaryLanguage,
	}
}

func (c *Cfg) CloudflareConfig() vector.CloudflareConfig {
	return vector.CloudflareConfig{
		AccountID:      c.CFAccountID,
		APIToken:       c.CFAPIToken,
		IndexName:      c.CFIndexName,
		EmbeddingModel: c.EmbeddingModel,
	}
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}

// EmbeddingEndpoint is the base URL for local-index embeddings. The scoring
// base URL is only reused for the openai provider; a compatible chat endpoint
// usually has no embeddings API.
func (c *Cfg) EmbeddingEndpoint() string {
	if c.EmbeddingBaseURL != "" {
		return c.EmbeddingBaseURL
	}
	if c.LLMProvider == ProviderOpenAI {
		return c.LLMBaseURL
	}
	return ""
}
