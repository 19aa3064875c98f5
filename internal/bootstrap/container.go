package bootstrap

import (
	"context"
	"log"

	"ai-deepsearch-be/internal/config"
	"ai-deepsearch-be/internal/controller"
	"ai-deepsearch-be/internal/handler"
	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/internal/pkg/mailer"
	"ai-deepsearch-be/internal/repository/contract"
	"ai-deepsearch-be/internal/repository/implementation"
	"ai-deepsearch-be/internal/repository/memory"
	"ai-deepsearch-be/internal/service"
	"ai-deepsearch-be/internal/websocket"
	"ai-deepsearch-be/pkg/council"
	"ai-deepsearch-be/pkg/embedding"
	"ai-deepsearch-be/pkg/embedding/jina"
	"ai-deepsearch-be/pkg/llm/factory"
	"ai-deepsearch-be/pkg/research"
	"ai-deepsearch-be/pkg/search"

	pktNats "ai-deepsearch-be/pkg/nats"
	searchFactory "ai-deepsearch-be/pkg/search/factory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ResearchController controller.IResearchController
	CouncilController  controller.ICouncilController

	// Background Services (Exposed for main.go to run)
	StreamConsumerService  service.IStreamConsumerService
	ArchiveConsumerService service.IArchiveConsumerService // nil when no database is configured

	// WebSockets & Streaming
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub
}

// NewContainer wires the whole application. db may be nil, in which case the
// research archive stays disabled and everything else keeps working.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		cfg.SMTP.SenderName,
		cfg.App.ClientURL,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	// Initialize Embedding Provider based on Config
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaEmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbeddingModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaAPIKey)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	creds := factory.Credentials{
		OllamaBaseURL:      cfg.Ai.OllamaBaseURL,
		OpenAIAPIKey:       cfg.Ai.OpenAIAPIKey,
		OpenAIBaseURL:      cfg.Ai.OpenAIBaseURL,
		GeminiAPIKey:       cfg.Ai.GeminiAPIKey,
		HuggingFaceAPIKey:  cfg.Ai.HuggingFaceAPIKey,
		HuggingFaceBaseURL: cfg.Ai.HuggingFaceBaseURL,
	}

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, creds)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// Initialize Search Provider based on Config
	searchProvider, err := searchFactory.NewSearchProvider(
		cfg.Search.Provider,
		cfg.Search.BraveAPIKey,
		cfg.Search.SearxngBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Search Provider: %v", err)
	}
	log.Printf("[INFO] Using Search Provider: %s", cfg.Search.Provider)

	enricher := search.NewEnricher()

	// Initialize In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository()

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Engines
	publisherService := service.NewPublisherService(pubSub)
	sessionPublisher := service.NewSessionPublisher(publisherService, natsPub, cfg.Events, sysLogger)

	researchEngine := research.NewEngine(
		llmProvider,
		searchProvider,
		enricher,
		sessionRepo,
		sessionPublisher,
		research.Config{
			SearchCount: cfg.Search.ResultCount,
			EnrichLimit: cfg.Search.EnrichLimit,
		},
		sysLogger,
	)

	backends := make([]council.Backend, 0, len(cfg.Council.Backends))
	for _, b := range cfg.Council.Backends {
		provider, err := factory.NewLLMProvider(b.Provider, b.Model, creds)
		if err != nil {
			log.Printf("[WARN] Skipping council backend %s: %v", b.ID, err)
			continue
		}
		kind := council.ProviderKindHosted
		if b.Provider == "ollama" {
			kind = council.ProviderKindLocal
		}
		backends = append(backends, council.Backend{
			ID:          b.ID,
			DisplayName: b.DisplayName,
			Kind:        kind,
			Model:       b.Model,
			Provider:    provider,
		})
	}
	councilEngine := council.NewEngine(backends, llmProvider, sessionRepo, sessionPublisher, sysLogger)

	// 5. Services
	deliveryService := service.NewDeliveryService(researchEngine, emailService, natsPub, natsSub, sysLogger)
	if err := deliveryService.Start(); err != nil {
		log.Printf("[WARN] Failed to start report delivery worker: %v", err)
	}

	var archiveRepo contract.ArchiveRepository
	var archiveConsumer service.IArchiveConsumerService
	if db != nil {
		archiveRepo = implementation.NewArchiveRepository(db)
		archiveConsumer = service.NewArchiveConsumerService(
			pubSub,
			cfg.Events.ResearchArchiveTopic,
			archiveRepo,
			embeddingProvider,
		)
	} else {
		log.Printf("[WARN] No database configured, research archive is disabled")
	}

	streamConsumer := service.NewStreamConsumerService(
		pubSub,
		wsHub,
		cfg.Events.ResearchUpdatesTopic,
		cfg.Events.CouncilUpdatesTopic,
	)

	researchService := service.NewResearchService(researchEngine, deliveryService, archiveRepo, embeddingProvider)
	councilService := service.NewCouncilService(councilEngine)

	// 6. Controllers
	return &Container{
		ResearchController: controller.NewResearchController(researchService),
		CouncilController:  controller.NewCouncilController(councilService),

		StreamConsumerService:  streamConsumer,
		ArchiveConsumerService: archiveConsumer,

		StreamHandler: handler.NewStreamHandler(wsHub, cfg.Stream, wsLogger),
		WebSocketHub:  wsHub,
	}
}
