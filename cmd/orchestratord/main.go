// Command orchestratord runs the orchestrator as a standalone process: it
// wires the Gateway's service registry, the hybrid Retriever, the
// Planner/Executor/Memory/Context Store actors, and the Deep-Research
// Workflow's HTTP surface into one binary, following the teacher's
// registry/cmd/registry main's manual-wiring style (env-driven Config,
// construct-then-run, no generated service scaffolding) rather than the
// teacher's Goa-generated example/cmd mains, which have no analog here.
//
// # Configuration
//
// See the config package for the full list of environment variables this
// command reads; set ORCHESTRATORD_ENV_FILE to load them from a .env file
// during local development.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/gin-gonic/gin"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/opencode-ai/orchestrator/config"
	"github.com/opencode-ai/orchestrator/contextstore"
	contextmongo "github.com/opencode-ai/orchestrator/contextstore/mongo"
	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/executoractor"
	"github.com/opencode-ai/orchestrator/gateway"
	"github.com/opencode-ai/orchestrator/gateway/breaker"
	"github.com/opencode-ai/orchestrator/llm"
	"github.com/opencode-ai/orchestrator/llm/anthropic"
	"github.com/opencode-ai/orchestrator/llm/bedrock"
	"github.com/opencode-ai/orchestrator/llm/openai"
	"github.com/opencode-ai/orchestrator/memoryactor"
	"github.com/opencode-ai/orchestrator/orchestrator"
	"github.com/opencode-ai/orchestrator/plan"
	"github.com/opencode-ai/orchestrator/planneractor"
	"github.com/opencode-ai/orchestrator/research"
	"github.com/opencode-ai/orchestrator/research/httpapi"
	"github.com/opencode-ai/orchestrator/research/pulsebroker"
	researchtemporal "github.com/opencode-ai/orchestrator/research/temporal"
	"github.com/opencode-ai/orchestrator/retriever"
	"github.com/opencode-ai/orchestrator/retriever/openaiembed"
	qdrantstore "github.com/opencode-ai/orchestrator/retriever/qdrant"
	"github.com/opencode-ai/orchestrator/routeractor"
	"github.com/opencode-ai/orchestrator/services/fileanalysis"
	"github.com/opencode-ai/orchestrator/services/knowledge"
	"github.com/opencode-ai/orchestrator/services/repoops"
	"github.com/opencode-ai/orchestrator/services/sandbox"
	"github.com/opencode-ai/orchestrator/services/vision"
	"github.com/opencode-ai/orchestrator/services/websearch"
	"github.com/opencode-ai/orchestrator/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := telemetry.NewClueLogger()

	llmClient, err := buildLLMClient(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	// The hybrid Retriever's Search always calls through its embedding model
	// and vector store before it ever considers BM25 fusion, so neither is
	// optional: a missing one means the process cannot serve RAG queries at
	// all, and must fail fast at startup rather than panic on first use.
	embedModel, err := openaiembed.NewFromAPIKey(cfg.LLM.OpenAIAPIKey, cfg.LLM.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("build embedding model: %w", err)
	}

	vectorStore, err := buildVectorStore(cfg.Retriever)
	if err != nil {
		return fmt.Errorf("build vector store: %w", err)
	}

	var retrieverOpts []retriever.Option
	retrieverOpts = append(retrieverOpts, retriever.WithLogger(logger))
	ret := retriever.New(embedModel, vectorStore, retrieverOpts...)

	ctxStore, closeMongo, err := buildContextStore(ctx, cfg.State, logger)
	if err != nil {
		return fmt.Errorf("build context store: %w", err)
	}
	if closeMongo != nil {
		defer closeMongo(ctx)
	}

	memory := memoryactor.New(
		memoryactor.WithMaxSessionHistory(cfg.State.MaxSessionHistory),
		memoryactor.WithMaxSkills(cfg.State.MaxSkills),
	)

	bus := eventbus.New(cfg.State.EventBusMaxHistory)

	gw := gateway.New(
		gateway.WithHealthInterval(cfg.Execution.HealthInterval),
		gateway.WithBreakerOptions(
			breaker.WithFailureThreshold(cfg.Execution.BreakerFailureThreshold),
			breaker.WithRecoveryTimeout(cfg.Execution.BreakerRecoveryTimeout),
		),
		gateway.WithLogger(logger),
	)
	registerServices(gw, cfg, llmClient, ret)
	gw.Start(ctx)
	defer gw.Stop()

	router := routeractor.New(map[string]string{
		knowledge.CapabilityRAGAsk:     "knowledge",
		sandbox.CapabilityRunCommand:   "sandbox",
		websearch.CapabilitySearch:     "websearch",
		repoops.CapabilityLog:          "repoops",
		repoops.CapabilityDiff:         "repoops",
		repoops.CapabilityStatus:       "repoops",
		vision.CapabilityAnalyze:       "vision",
		fileanalysis.CapabilityAnalyze: "fileanalysis",
	})

	executor := executoractor.New(gw, router, bus,
		executoractor.WithDefaultTimeout(cfg.Execution.ExecutorTimeout),
		executoractor.WithMaxRetries(cfg.Execution.ExecutorMaxRetries),
		executoractor.WithLogger(logger),
	)

	planner := planneractor.New(llm.NewPlannerAdapter(llmClient, ""), planneractor.WithLogger(logger))

	orch := orchestrator.New(planner, executor, memory, ctxStore, bus,
		orchestrator.WithSynthesizer(llmClient, ""),
		orchestrator.WithTimeout(cfg.Execution.OrchestratorTimeout),
		orchestrator.WithMaxRestarts(cfg.Execution.MaxRestarts),
		orchestrator.WithLogger(logger),
	)

	researchOpts := []research.Option{research.WithLogger(logger)}
	if redisClient := buildRedisClient(cfg.State.RedisURL); redisClient != nil {
		defer redisClient.Close()
		if pb, err := pulsebroker.New(pulsebroker.Options{Redis: redisClient}); err != nil {
			log.Printf("orchestratord: pulse broker unavailable: %v", err)
		} else {
			researchOpts = append(researchOpts, research.WithStepSink(httpapi.NewPulseStepSink(pb, logger)))
		}
	}
	researchWorkflow := research.New(research.NewClientAdapter(llmClient, ""), ret, researchOpts...)

	if cfg.Research.UseTemporal {
		if err := startTemporalResearchRunner(ctx, cfg.Research, llmClient, ret); err != nil {
			log.Printf("orchestratord: temporal research runner unavailable: %v", err)
		}
	}

	engine := gin.Default()
	httpapi.NewServer(researchWorkflow).Register(engine)
	engine.POST("/query", queryHandler(orch))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: engine}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("orchestratord: listening on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// queryHandler drains one ProcessIntent run and returns its events as a
// JSON array, a plain (non-streaming) façade over the Orchestrator's
// streaming ProcessIntent for callers that just want the final answer.
func queryHandler(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	type request struct {
		Query     string         `json:"query" binding:"required"`
		SessionID string         `json:"session_id"`
		Mode      string         `json:"mode"`
		Options   map[string]any `json:"options"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		events := orch.ProcessIntent(c.Request.Context(), plan.Request{
			Query:     req.Query,
			SessionID: req.SessionID,
			Mode:      plan.Mode(req.Mode),
			Options:   req.Options,
		})
		out := make([]eventbusEventJSON, 0, 16)
		for evt := range events {
			out = append(out, eventbusEventJSON{Type: string(evt.Type), Payload: evt.Payload})
		}
		c.JSON(http.StatusOK, gin.H{"events": out})
	}
}

type eventbusEventJSON struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func buildLLMClient(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	var clients []llm.Client

	// Every provider client is wrapped in its own adaptive rate limiter
	// before joining the fallback chain, so a 429 from one provider backs
	// that provider off without throttling the others.
	rateLimit := func(c llm.Client) llm.Client {
		return llm.NewRateLimited(c, float64(cfg.RateLimitTPM), float64(cfg.RateLimitTPM))
	}

	if cfg.AnthropicAPIKey != "" {
		c, err := anthropic.NewFromAPIKey(cfg.AnthropicAPIKey, cfg.AnthropicModel, 4096)
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		clients = append(clients, rateLimit(c))
	}
	if cfg.OpenAIAPIKey != "" {
		c, err := openai.NewFromAPIKey(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		clients = append(clients, rateLimit(c))
	}
	if awsCfg, err := awsconfig.LoadDefaultConfig(ctx); err == nil {
		runtime := bedrockruntime.NewFromConfig(awsCfg)
		if c, err := bedrock.New(runtime, cfg.BedrockModel); err == nil {
			clients = append(clients, rateLimit(c))
		}
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("no LLM provider configured")
	}
	if len(clients) == 1 {
		return clients[0], nil
	}
	return llm.NewFallback(clients, llm.WithLogger(telemetry.NewClueLogger())), nil
}

func buildVectorStore(cfg config.RetrieverConfig) (retriever.VectorStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
	})
	if err != nil {
		return nil, err
	}
	return qdrantstore.New(client, cfg.QdrantCollection), nil
}

func buildContextStore(ctx context.Context, cfg config.StateConfig, logger telemetry.Logger) (*contextstore.Store, func(context.Context), error) {
	opts := []contextstore.Option{
		contextstore.WithTTL(cfg.ContextTTL),
		contextstore.WithLogger(logger),
	}
	if cfg.MongoURI == "" {
		return contextstore.New(opts...), nil, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	coll := client.Database(cfg.MongoDatabase).Collection("orchestrator_contexts")
	durable, err := contextmongo.New(ctx, coll)
	if err != nil {
		return nil, nil, fmt.Errorf("init context store backing collection: %w", err)
	}
	opts = append(opts, contextstore.WithDurable(durable, contextstore.JSONCodec{}))
	closeFn := func(ctx context.Context) { _ = client.Disconnect(ctx) }
	return contextstore.New(opts...), closeFn, nil
}

func buildRedisClient(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("orchestratord: invalid REDIS_URL: %v", err)
		return nil
	}
	return redis.NewClient(opts)
}

func registerServices(gw *gateway.Gateway, cfg config.Config, llmClient llm.Client, ret *retriever.Retriever) {
	gw.Register(knowledge.New(ret))
	if cfg.Services.SandboxEnabled {
		gw.Register(sandbox.New())
	}
	if cfg.Services.WebSearchEndpoint != "" {
		gw.Register(websearch.New(nil, cfg.Services.WebSearchEndpoint))
	}
	if cfg.Services.RepoOpsDir != "" {
		gw.Register(repoops.New(cfg.Services.RepoOpsDir))
	}
	gw.Register(vision.New(llmClient, cfg.LLM.AnthropicModel))
	gw.Register(fileanalysis.New(llmClient, cfg.LLM.AnthropicModel))
}

func startTemporalResearchRunner(ctx context.Context, cfg config.ResearchConfig, llmClient llm.Client, ret *retriever.Retriever) error {
	opts, err := researchtemporal.OTELClientOptions(temporalclient.Options{HostPort: cfg.HostPort, Namespace: cfg.Namespace})
	if err != nil {
		return fmt.Errorf("configure temporal instrumentation: %w", err)
	}
	c, err := temporalclient.NewLazyClient(opts)
	if err != nil {
		return fmt.Errorf("connect temporal: %w", err)
	}
	runner, err := researchtemporal.NewRunner(c, cfg.TaskQueue, &researchtemporal.Activities{
		LLM:       research.NewClientAdapter(llmClient, ""),
		Retriever: ret,
	})
	if err != nil {
		return fmt.Errorf("configure temporal worker: %w", err)
	}
	go func() {
		if err := runner.Start(); err != nil {
			log.Printf("orchestratord: temporal worker stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return nil
}
