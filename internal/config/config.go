package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Search   SearchConfig
	Ai       AIConfig
	Council  CouncilConfig
	Events   EventsConfig
	Stream   StreamConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type SearchConfig struct {
	Provider       string // "brave" or "searxng"
	BraveAPIKey    string
	SearxngBaseURL string
	ResultCount    int
	EnrichLimit    int
}

type AIConfig struct {
	LLMProvider        string // "ollama", "openai", "gemini", "huggingface"
	LLMModel           string // e.g. "llama3.1", "gpt-4o-mini"
	OllamaBaseURL      string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	GeminiAPIKey       string
	HuggingFaceAPIKey  string
	HuggingFaceBaseURL string

	EmbeddingProvider    string // "ollama", "gemini" or "jina"
	OllamaEmbeddingModel string
	JinaAPIKey           string
}

// BackendConfig declares one council member. Backends are configured as a
// comma separated list: "local-llama=ollama/llama3.1,gpt-mini=openai/gpt-4o-mini".
type BackendConfig struct {
	ID          string
	DisplayName string
	Provider    string
	Model       string
}

type CouncilConfig struct {
	Backends []BackendConfig
}

type EventsConfig struct {
	ResearchUpdatesTopic string
	CouncilUpdatesTopic  string
	ResearchArchiveTopic string
}

type StreamConfig struct {
	TicketSecret     string
	TicketTTLMinutes int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "DeepSearch"),
		},
		Search: SearchConfig{
			Provider:       getEnv("SEARCH_PROVIDER", "searxng"),
			BraveAPIKey:    getEnv("BRAVE_API_KEY", ""),
			SearxngBaseURL: getEnv("SEARXNG_BASE_URL", "http://localhost:8080"),
			ResultCount:    getEnvAsInt("SEARCH_RESULT_COUNT", 5),
			EnrichLimit:    getEnvAsInt("SEARCH_ENRICH_LIMIT", 3),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3.1"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
			GeminiAPIKey:       getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFaceAPIKey:  getEnv("HUGGINGFACE_API_KEY", ""),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),

			EmbeddingProvider:    getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaEmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			JinaAPIKey:           getEnv("JINA_API_KEY", ""),
		},
		Council: CouncilConfig{
			Backends: parseBackends(getEnv("COUNCIL_BACKENDS", "local-llama=ollama/llama3.1,local-qwen=ollama/qwen2.5")),
		},
		Events: EventsConfig{
			ResearchUpdatesTopic: getEnv("RESEARCH_UPDATES_TOPIC_NAME", "RESEARCH_UPDATES"),
			CouncilUpdatesTopic:  getEnv("COUNCIL_UPDATES_TOPIC_NAME", "COUNCIL_UPDATES"),
			ResearchArchiveTopic: getEnv("RESEARCH_ARCHIVE_TOPIC_NAME", "RESEARCH_ARCHIVE"),
		},
		Stream: StreamConfig{
			TicketSecret:     getEnv("STREAM_TICKET_SECRET", "dev-ticket-secret"),
			TicketTTLMinutes: getEnvAsInt("STREAM_TICKET_TTL_MINUTES", 5),
		},
	}
}

func parseBackends(raw string) []BackendConfig {
	var backends []BackendConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, spec, ok := strings.Cut(entry, "=")
		if !ok {
			log.Printf("Warning: skipping malformed council backend %q", entry)
			continue
		}
		providerName, model, ok := strings.Cut(spec, "/")
		if !ok {
			log.Printf("Warning: skipping malformed council backend %q", entry)
			continue
		}
		id = strings.TrimSpace(id)
		backends = append(backends, BackendConfig{
			ID:          id,
			DisplayName: displayNameFor(id),
			Provider:    strings.TrimSpace(providerName),
			Model:       strings.TrimSpace(model),
		})
	}
	return backends
}

// displayNameFor turns a backend id like "local-llama" into "Local Llama".
func displayNameFor(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
