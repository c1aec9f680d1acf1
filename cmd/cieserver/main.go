// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kraklabs/cie/internal/agentgraph"
	"github.com/kraklabs/cie/pkg/chathistory"
	"github.com/kraklabs/cie/pkg/datasource"
	"github.com/kraklabs/cie/pkg/graphstore"
	"github.com/kraklabs/cie/pkg/ingestion"
	"github.com/kraklabs/cie/pkg/jobqueue"
	"github.com/kraklabs/cie/pkg/llm"
	"github.com/kraklabs/cie/pkg/memory"
	"github.com/kraklabs/cie/pkg/secretstore"
	"github.com/kraklabs/cie/pkg/vectorstore"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	port := envOr("PORT", "8080")
	graphURI := envOr("GRAPH_URI", "bolt://localhost:7687")
	graphUser := envOr("GRAPH_USER", "neo4j")
	graphPassword := os.Getenv("GRAPH_PASSWORD")
	vectorAddr := envOr("VECTOR_ADDR", "localhost:6334")
	vectorCollection := envOr("VECTOR_COLLECTION", "cie")
	jobBrokerURL := envOr("JOB_BROKER_URL", nats.DefaultURL)
	llmAPIKey := os.Getenv("LLM_API_KEY")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := graphstore.NewDriver(ctx, graphstore.DriverConfig{URI: graphURI, Username: graphUser, Password: graphPassword})
	if err != nil {
		logger.Error("graph store connect failed", "error", err)
		os.Exit(1)
	}
	graph := graphstore.NewNeo4jStore(driver)
	defer graph.Close(context.Background())

	vectors, err := vectorstore.New(vectorAddr, vectorCollection)
	if err != nil {
		logger.Error("vector store connect failed", "error", err)
		os.Exit(1)
	}
	defer vectors.Close()

	embeddings, err := ingestion.CreateEmbeddingProvider(envOr("EMBEDDING_PROVIDER", "ollama"), logger)
	if err != nil {
		logger.Error("embedding provider init failed", "error", err)
		os.Exit(1)
	}

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Type:         envOr("LLM_PROVIDER", "ollama"),
		BaseURL:      os.Getenv("LLM_BASE_URL"),
		APIKey:       llmAPIKey,
		DefaultModel: envOr("LLM_DEFAULT_MODEL", "llama3.1:8b"),
	})
	if err != nil {
		logger.Error("llm provider init failed", "error", err)
		os.Exit(1)
	}

	nc, err := nats.Connect(jobBrokerURL)
	if err != nil {
		logger.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	jobs := jobqueue.New(nc)

	history := chathistory.NewMemStore()
	sources := datasource.NewMemStore()
	secrets := secretstore.NewMemStore(map[string]string{"Gemini-API-Key": llmAPIKey})
	models := NewMemModelRegistry(
		ConfiguredModel{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: "google", IsActive: true, APIKeyName: "Gemini-API-Key"},
		ConfiguredModel{ID: envOr("LLM_DEFAULT_MODEL", "llama3.1:8b"), Name: "Local Llama", Provider: "ollama", IsActive: true},
	)

	maintainer := memory.NewMaintainer(provider, history, memory.NewMemSummaryStore(), memory.NewMemFactStore(), "gemini-1.5-flash", logger)
	if _, err := jobs.SubscribeMemory(maintainer.HandleJob); err != nil {
		logger.Error("failed to subscribe to memory queue", "error", err)
		os.Exit(1)
	}

	ingestConfig := ingestion.Config{IngestionConfig: ingestion.DefaultConfig()}
	if _, err := jobs.SubscribeIngest(func(jobCtx context.Context, job jobqueue.IngestJob) {
		pipeline := ingestion.NewGraphPipeline(ingestConfig, graph, vectors, embeddings, logger)
		defer pipeline.Close()

		source := ingestion.SourceFromString(job.Source)
		if _, err := pipeline.Run(jobCtx, job.RepoID, source); err != nil {
			logger.Error("ingestion job failed", "repo_id", job.RepoID, "error", err)
			return
		}
		logger.Info("ingestion job complete", "repo_id", job.RepoID)
	}); err != nil {
		logger.Error("failed to subscribe to ingest queue", "error", err)
		os.Exit(1)
	}

	tools := &agentgraph.Tools{Graph: graph, Vectors: vectors, Embeddings: embeddings}
	agent := agentgraph.New(provider, tools)

	srv := NewServer(agent, history, sources, models, secrets, maintainer, jobs, logger)

	httpServer := &http.Server{Addr: ":" + port, Handler: srv.Handler()}

	go func() {
		logger.Info("cieserver starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutCtx)
}
