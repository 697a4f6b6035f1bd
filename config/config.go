// Package config loads this service's deployment configuration from
// environment variables (optionally seeded from a .env file via
// github.com/joho/godotenv), grounded in the teacher's registry/cmd/registry
// main's envOr/envIntOr/envDurationOr helpers and in
// basegraphhq-basegraph/codegraph/assistant's LoadConfig (godotenv.Load,
// constant env-var names, defaulting, and up-front validation).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names. Grouped by the component they configure.
const (
	envHTTPAddr = "ORCHESTRATORD_HTTP_ADDR"
	envEnvFile  = "ORCHESTRATORD_ENV_FILE"

	envAnthropicAPIKey = "ANTHROPIC_API_KEY"
	envAnthropicModel  = "ANTHROPIC_MODEL"
	envOpenAIAPIKey    = "OPENAI_API_KEY"
	envOpenAIModel     = "OPENAI_MODEL"
	envBedrockModel    = "BEDROCK_MODEL"
	envEmbeddingModel  = "OPENAI_EMBEDDING_MODEL"
	envLLMRateLimitTPM = "LLM_RATE_LIMIT_TPM"

	envQdrantHost       = "QDRANT_HOST"
	envQdrantPort       = "QDRANT_PORT"
	envQdrantAPIKey     = "QDRANT_API_KEY"
	envQdrantCollection = "QDRANT_COLLECTION"
	envRetrieverTopK    = "RETRIEVER_TOP_K"
	envUseRerank        = "RETRIEVER_USE_RERANK"

	envMongoURI        = "MONGO_URI"
	envMongoDatabase   = "MONGO_DATABASE"
	envRedisURL        = "REDIS_URL"
	envContextTTL      = "CONTEXT_STORE_TTL"
	envMaxSessionHist  = "MEMORY_MAX_SESSION_HISTORY"
	envMaxSkills       = "MEMORY_MAX_SKILLS"
	envEventBusHistory = "EVENT_BUS_MAX_HISTORY"

	envExecutorTimeout    = "EXECUTOR_DEFAULT_TIMEOUT"
	envExecutorMaxRetries = "EXECUTOR_MAX_RETRIES"
	envOrchestratorTimeout = "ORCHESTRATOR_TIMEOUT"
	envMaxRestarts        = "ORCHESTRATOR_MAX_RESTARTS"

	envBreakerFailureThreshold = "BREAKER_FAILURE_THRESHOLD"
	envBreakerRecoveryTimeout  = "BREAKER_RECOVERY_TIMEOUT"
	envHealthInterval          = "GATEWAY_HEALTH_INTERVAL"

	envSandboxEnabled    = "SANDBOX_ENABLED"
	envWebSearchEndpoint = "WEBSEARCH_ENDPOINT"
	envRepoOpsDir        = "REPOOPS_REPO_DIR"

	envTemporalHostPort  = "TEMPORAL_HOST_PORT"
	envTemporalNamespace = "TEMPORAL_NAMESPACE"
	envTemporalTaskQueue = "TEMPORAL_TASK_QUEUE"
	envUseTemporal       = "USE_TEMPORAL_RESEARCH"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	defaultHTTPAddr           = ":8080"
	defaultAnthropicModel     = "claude-3-5-sonnet-20241022"
	defaultOpenAIModel        = "gpt-4o-mini"
	defaultBedrockModel       = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	defaultEmbeddingModel     = "text-embedding-3-small"
	defaultLLMRateLimitTPM    = 60000
	defaultQdrantHost         = "localhost"
	defaultQdrantPort         = 6334
	defaultQdrantCollection   = "orchestrator_chunks"
	defaultRetrieverTopK      = 8
	defaultMongoDatabase      = "orchestrator"
	defaultContextTTL         = 24 * time.Hour
	defaultMaxSessionHistory  = 50
	defaultMaxSkills          = 20
	defaultEventBusHistory    = 256
	defaultExecutorTimeout    = 30 * time.Second
	defaultExecutorMaxRetries = 2
	defaultOrchestratorTimeout = 120 * time.Second
	defaultMaxRestarts         = 3
	defaultBreakerFailureThreshold = 5
	defaultBreakerRecoveryTimeout  = 30 * time.Second
	defaultHealthInterval          = 15 * time.Second
	defaultTemporalHostPort        = "localhost:7233"
	defaultTemporalNamespace       = "default"
	defaultTemporalTaskQueue       = "orchestrator-research"
)

// LLMConfig configures the provider adapters and their fallback order.
type LLMConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	BedrockModel    string
	EmbeddingModel  string

	// RateLimitTPM is the adaptive tokens-per-minute budget each provider
	// client starts at before llm.RateLimited's AIMD backoff/probe logic
	// adjusts it in response to observed throttling.
	RateLimitTPM int
}

// RetrieverConfig configures the hybrid retriever and its Qdrant backend.
type RetrieverConfig struct {
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantCollection string
	TopK             int
	UseRerank        bool
}

// StateConfig configures the Context Store and Memory Actor's durability
// and retention.
type StateConfig struct {
	MongoURI           string
	MongoDatabase      string
	RedisURL           string
	ContextTTL         time.Duration
	MaxSessionHistory  int
	MaxSkills          int
	EventBusMaxHistory int
}

// ExecutionConfig configures the Executor Actor, Orchestrator supervision,
// and Gateway circuit breakers.
type ExecutionConfig struct {
	ExecutorTimeout        time.Duration
	ExecutorMaxRetries     int
	OrchestratorTimeout    time.Duration
	MaxRestarts            int
	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration
	HealthInterval          time.Duration
}

// ServicesConfig configures the gateway.Service reference implementations.
type ServicesConfig struct {
	SandboxEnabled   bool
	WebSearchEndpoint string
	RepoOpsDir       string
}

// ResearchConfig configures the Deep-Research Workflow's runtime, including
// whether to back it with the Temporal workflow engine instead of the
// in-process default.
type ResearchConfig struct {
	UseTemporal   bool
	HostPort      string
	Namespace     string
	TaskQueue     string
}

// Config is the fully resolved configuration for the orchestratord process.
type Config struct {
	HTTPAddr string

	LLM       LLMConfig
	Retriever RetrieverConfig
	State     StateConfig
	Execution ExecutionConfig
	Services  ServicesConfig
	Research  ResearchConfig
}

// Load reads configuration from the environment, optionally seeding it
// first from a .env file named by ORCHESTRATORD_ENV_FILE (skipped when the
// variable is unset; when it is set and the file cannot be loaded, Load
// returns an error).
func Load() (Config, error) {
	if path := os.Getenv(envEnvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("config: load env file %q: %w", path, err)
		}
	}

	cfg := Config{
		HTTPAddr: envOr(envHTTPAddr, defaultHTTPAddr),
		LLM: LLMConfig{
			AnthropicAPIKey: strings.TrimSpace(os.Getenv(envAnthropicAPIKey)),
			AnthropicModel:  envOr(envAnthropicModel, defaultAnthropicModel),
			OpenAIAPIKey:    strings.TrimSpace(os.Getenv(envOpenAIAPIKey)),
			OpenAIModel:     envOr(envOpenAIModel, defaultOpenAIModel),
			BedrockModel:    envOr(envBedrockModel, defaultBedrockModel),
			EmbeddingModel:  envOr(envEmbeddingModel, defaultEmbeddingModel),
			RateLimitTPM:    envIntOr(envLLMRateLimitTPM, defaultLLMRateLimitTPM),
		},
		Retriever: RetrieverConfig{
			QdrantHost:       envOr(envQdrantHost, defaultQdrantHost),
			QdrantPort:       envIntOr(envQdrantPort, defaultQdrantPort),
			QdrantAPIKey:     strings.TrimSpace(os.Getenv(envQdrantAPIKey)),
			QdrantCollection: envOr(envQdrantCollection, defaultQdrantCollection),
			TopK:             envIntOr(envRetrieverTopK, defaultRetrieverTopK),
			UseRerank:        envBoolOr(envUseRerank, true),
		},
		State: StateConfig{
			MongoURI:           strings.TrimSpace(os.Getenv(envMongoURI)),
			MongoDatabase:      envOr(envMongoDatabase, defaultMongoDatabase),
			RedisURL:           strings.TrimSpace(os.Getenv(envRedisURL)),
			ContextTTL:         envDurationOr(envContextTTL, defaultContextTTL),
			MaxSessionHistory:  envIntOr(envMaxSessionHist, defaultMaxSessionHistory),
			MaxSkills:          envIntOr(envMaxSkills, defaultMaxSkills),
			EventBusMaxHistory: envIntOr(envEventBusHistory, defaultEventBusHistory),
		},
		Execution: ExecutionConfig{
			ExecutorTimeout:         envDurationOr(envExecutorTimeout, defaultExecutorTimeout),
			ExecutorMaxRetries:      envIntOr(envExecutorMaxRetries, defaultExecutorMaxRetries),
			OrchestratorTimeout:     envDurationOr(envOrchestratorTimeout, defaultOrchestratorTimeout),
			MaxRestarts:             envIntOr(envMaxRestarts, defaultMaxRestarts),
			BreakerFailureThreshold: envIntOr(envBreakerFailureThreshold, defaultBreakerFailureThreshold),
			BreakerRecoveryTimeout:  envDurationOr(envBreakerRecoveryTimeout, defaultBreakerRecoveryTimeout),
			HealthInterval:          envDurationOr(envHealthInterval, defaultHealthInterval),
		},
		Services: ServicesConfig{
			SandboxEnabled:    envBoolOr(envSandboxEnabled, true),
			WebSearchEndpoint: os.Getenv(envWebSearchEndpoint),
			RepoOpsDir:        os.Getenv(envRepoOpsDir),
		},
		Research: ResearchConfig{
			UseTemporal: envBoolOr(envUseTemporal, false),
			HostPort:    envOr(envTemporalHostPort, defaultTemporalHostPort),
			Namespace:   envOr(envTemporalNamespace, defaultTemporalNamespace),
			TaskQueue:   envOr(envTemporalTaskQueue, defaultTemporalTaskQueue),
		},
	}

	if cfg.LLM.AnthropicAPIKey == "" && cfg.LLM.OpenAIAPIKey == "" {
		return cfg, fmt.Errorf("config: at least one of %s or %s must be set", envAnthropicAPIKey, envOpenAIAPIKey)
	}

	return cfg, nil
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envBoolOr(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
