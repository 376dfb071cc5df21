package cfg

import (
	"time"
)

const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderCompatible = "compatible"

	VectorProviderVectorize = "vectorize"
	VectorProviderLocal     = "local"
)

type Cfg struct {
	// Storage and sources
	DBPath   string
	FeedsDir string

	// HTTP server and scheduling
	Port              string
	BaseUrl           string
	APIAccessKey      string
	WorkerCount       int
	SchedulerInterval time.Duration
	Once              bool

	// Fetching
	UserAgent       string
	FetchInterval   time.Duration
	MaxEntries      int
	SeenPrefetch    int
	MaxContentRunes int

	// Scoring oracle
	LLMProvider          string
	LLMModel             string
	LLMBaseURL           string
	OpenAIAPIKey         string
	AnthropicAPIKey      string
	LLMTimeout           time.Duration
	LLMRetries           int
	LLMConcurrency       int
	LLMRequestsPerMinute int
	SummaryLanguage      string
	SystemPrompt         string
	FeaturedPrompt       string
	PublishThreshold     float64
	Curate               bool

	// Failed-item ledger
	LedgerMaxItems   int
	LedgerRetryLimit int
	LedgerMaxAge     time.Duration
	LedgerMissLimit  int

	// Semantic dedup
	VectorDedup         bool
	VectorProvider      string
	CFAccountID         string
	CFAPIToken          string
	CFIndexName         string
	EmbeddingModel      string
	EmbeddingBaseURL    string
	VectorTopK          int
	SimilarityThreshold float64
	VectorMetric        string

	// Notifications
	TelegramToken  string
	TelegramChatID int64

	// Application metadata
	Timezone string
	LogLevel string
	Debug    bool
	Version  string
}
