package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"ai-deepsearch-be/internal/config"
	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/internal/repository/memory"
	"ai-deepsearch-be/pkg/council"
	"ai-deepsearch-be/pkg/llm/factory"
	"ai-deepsearch-be/pkg/research"
	"ai-deepsearch-be/pkg/search"
	"ai-deepsearch-be/pkg/store"

	searchFactory "ai-deepsearch-be/pkg/search/factory"
)

// printObserver dumps a compact progress line on every session change.
type printObserver struct{}

func (printObserver) ResearchUpdated(s *research.Session) {
	parts := make([]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		parts = append(parts, fmt.Sprintf("%s=%s", step.Kind, step.Status))
	}
	fmt.Printf("  [research %s] %s\n", s.RunState, strings.Join(parts, " "))
}

func (printObserver) CouncilUpdated(s *council.Session) {
	parts := make([]string, 0, len(s.Responses))
	for _, r := range s.Responses {
		parts = append(parts, fmt.Sprintf("%s=%s(%d chars)", r.BackendID, r.Status, len(r.Text)))
	}
	fmt.Printf("  [council %s] %s\n", s.RunState, strings.Join(parts, " "))
}

func main() {
	fmt.Println("=== DeepSearch Engine Simulation ===")

	cfg := config.Load()

	creds := factory.Credentials{
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OpenAIAPIKey:  cfg.Ai.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
		GeminiAPIKey:  cfg.Ai.GeminiAPIKey,
	}

	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, creds)
	if err != nil {
		log.Fatalf("LLM provider: %v", err)
	}
	searchProvider, err := searchFactory.NewSearchProvider(cfg.Search.Provider, cfg.Search.BraveAPIKey, cfg.Search.SearxngBaseURL)
	if err != nil {
		log.Fatalf("Search provider: %v", err)
	}

	sessionRepo := memory.NewSessionRepository()
	obs := printObserver{}
	// Engine logs would drown the walkthrough output.
	sysLogger := logger.NewNopLogger()

	engine := research.NewEngine(
		llmProvider,
		searchProvider,
		search.NewEnricher(),
		sessionRepo,
		obs,
		research.Config{SearchCount: cfg.Search.ResultCount, EnrichLimit: cfg.Search.EnrichLimit},
		sysLogger,
	)

	// 1. Research run
	query := "How do modern battery recycling processes recover lithium?"
	fmt.Printf("\n--- Research: %q ---\n", query)

	sess, err := engine.Start(query)
	if err != nil {
		log.Fatalf("Start research: %v", err)
	}

	final := waitResearch(engine, sess.ID)
	fmt.Println("\n--- Report ---")
	fmt.Println(research.FormatReport(final))

	// 2. Council round
	backends := make([]council.Backend, 0, len(cfg.Council.Backends))
	ids := make([]string, 0, len(cfg.Council.Backends))
	for _, b := range cfg.Council.Backends {
		provider, err := factory.NewLLMProvider(b.Provider, b.Model, creds)
		if err != nil {
			fmt.Printf("Skipping backend %s: %v\n", b.ID, err)
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
		ids = append(ids, b.ID)
	}

	if len(ids) < 2 {
		fmt.Println("\nCouncil needs at least two configured backends, skipping council round")
		return
	}

	councilQuery := "Is nuclear power essential for decarbonization?"
	fmt.Printf("\n--- Council: %q (%s) ---\n", councilQuery, strings.Join(ids, ", "))

	councilEngine := council.NewEngine(backends, llmProvider, sessionRepo, obs, sysLogger)
	csess, err := councilEngine.Start(councilQuery, ids)
	if err != nil {
		log.Fatalf("Start council: %v", err)
	}

	cfinal := waitCouncil(councilEngine, csess.ID)
	if cfinal.Consensus != nil {
		fmt.Printf("\nConsensus (%s): %s\n", cfinal.Consensus.Source, cfinal.Consensus.Text)
		if cfinal.Consensus.Keywords != nil {
			fmt.Printf("Shared keywords: %s\n", strings.Join(cfinal.Consensus.Keywords.Words, ", "))
		}
	}

	voted, err := councilEngine.Vote(csess.ID, ids[0])
	if err != nil {
		log.Fatalf("Vote: %v", err)
	}
	fmt.Printf("Votes after voting for %s: %v\n", ids[0], voted.Votes)
}

func waitResearch(engine *research.Engine, id string) *research.Session {
	for {
		time.Sleep(500 * time.Millisecond)
		s, err := engine.Get(id)
		if err != nil {
			log.Fatalf("Get research: %v", err)
		}
		if store.TerminalRunState(s.RunState) {
			return s
		}
	}
}

func waitCouncil(engine *council.Engine, id string) *council.Session {
	for {
		time.Sleep(500 * time.Millisecond)
		s, err := engine.Get(id)
		if err != nil {
			log.Fatalf("Get council: %v", err)
		}
		if store.TerminalRunState(s.RunState) {
			return s
		}
	}
}
