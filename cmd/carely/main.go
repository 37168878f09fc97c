// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command carely starts the Carely assistant API server.
//
// The server routes incoming chat messages between the appointment
// agent, the knowledge-grounded Q&A agent, and a general assistant
// fallback, keeping per-conversation history in memory.
//
// Usage:
//
//	go run ./cmd/carely
//	go run ./cmd/carely -port 9090
//
// Required environment:
//
//	OPENAI_API_KEY       OpenAI API key for chat and embeddings
//
// Optional environment:
//
//	OPENAI_MODEL         Chat model (default gpt-4o-mini)
//	OPENAI_EMBED_MODEL   Embedding model (default text-embedding-3-small)
//	PINECONE_API_KEY     Pinecone API key; enables knowledge retrieval
//	PINECONE_INDEX_HOST  Pinecone index host
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/health
//
//	# Send a chat message
//	curl -X POST http://localhost:8080/v1/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "I have a headache, can I see a doctor tomorrow?"}'
//
//	# Continue a conversation
//	curl -X POST http://localhost:8080/v1/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "Make it virtual please", "conversation_id": "<id>"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/carelyhealth/carely/services/assistant"
	"github.com/carelyhealth/carely/services/assistant/config"
	"github.com/carelyhealth/carely/services/assistant/rag"
	"github.com/carelyhealth/carely/services/assistant/routing"
	"github.com/carelyhealth/carely/services/llm"
	"github.com/carelyhealth/carely/services/pinecone"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace ids flow from inbound
	// headers through every handler span.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	client, err := llm.NewOpenAIClient()
	if err != nil {
		slog.Error("Failed to initialize OpenAI client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	intentCfg, err := config.GetIntentConfig(context.Background())
	if err != nil {
		slog.Error("Failed to load intent configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Retrieval is optional. Without Pinecone the Q&A agent still
	// answers, just ungrounded.
	var retriever *rag.Retriever
	index, err := pinecone.NewClient()
	if err != nil {
		slog.Warn("Pinecone unavailable, Q&A answers will not be grounded",
			slog.String("error", err.Error()))
	} else {
		retriever = rag.NewRetriever(client, index, rag.DefaultNamespace, rag.DefaultTopK, slog.Default())
	}

	router := routing.NewHybridRouter(intentCfg, routing.NewLLMClassifier(client, slog.Default()))
	appointments := assistant.NewMemoryAppointmentStore()
	conversations := assistant.NewMemoryConversationStore()

	var contextProvider assistant.ContextProvider
	if retriever != nil {
		contextProvider = retriever
	}
	service := assistant.NewChatService(
		router,
		assistant.NewAppointmentAgent(client, appointments, slog.Default()),
		assistant.NewQnAAgent(client, contextProvider),
		client,
		conversations,
		slog.Default(),
	)
	handlers := assistant.NewHandlers(service, slog.Default())

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("carely-assistant"))
	if *debug {
		engine.Use(gin.Logger())
	}

	v1 := engine.Group("/v1")
	assistant.RegisterRoutes(v1, handlers)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, retriever != nil)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down Carely assistant server")
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting Carely assistant server", slog.String("address", addr))
	if err := engine.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// printBanner prints a startup summary with quick-start requests.
func printBanner(port int, ragEnabled bool) {
	ragStatus := "DISABLED (set PINECONE_API_KEY and PINECONE_INDEX_HOST to enable)"
	if ragEnabled {
		ragStatus = "ENABLED (Pinecone connected)"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                    CARELY ASSISTANT SERVER                        ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Healthcare chat with appointment booking and grounded Q&A.       ║
║  Knowledge Retrieval: %-43s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/health                    │  ║
║  │                                                             │  ║
║  │ # Send a chat message                                       │  ║
║  │ curl -X POST http://localhost:%d/v1/chat \            │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"message": "What are your opening hours?"}'          │  ║
║  │                                                             │  ║
║  │ # Prometheus metrics                                        │  ║
║  │ curl http://localhost:%d/metrics                      │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, truncate(ragStatus, 43), port, port, port)
}

// truncate shortens s to at most n runes for banner alignment.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
