// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package ingestion

import "time"

// RepoSource identifies where the repository to index comes from.
type RepoSource struct {
	// Type is "git_url" or "local_path".
	Type string
	// Value is the git URL or local filesystem path.
	Value string
}

// ConcurrencyConfig controls worker pool sizes for the pipeline's concurrent
// stages.
type ConcurrencyConfig struct {
	ParseWorkers int
	EmbedWorkers int
}

// RetryConfig controls retry/backoff behavior for flaky upstream calls
// (embedding providers, LLM providers, remote stores).
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// IngestionConfig holds the tunable knobs of the ingestion pipeline.
type IngestionConfig struct {
	// ParserMode selects "treesitter", "simplified", or "auto".
	ParserMode ParserMode

	// EmbeddingProvider selects "openai", "nomic", "ollama", or "mock".
	EmbeddingProvider string

	MaxFileSizeBytes int64
	MaxCodeTextBytes int64

	ExcludeGlobs []string

	Concurrency ConcurrencyConfig

	// LocalDataDir and LocalEngine configure the embedded CozoDB backend
	// (see pkg/storage), used when no remote graph/vector store is
	// configured.
	LocalDataDir string
	LocalEngine  string

	BatchTargetMutations int
	WriteMode            string

	CheckpointPath string
}

// Config is the top-level configuration for a single ingestion run.
type Config struct {
	ProjectID       string
	RepoSource      RepoSource
	IngestionConfig IngestionConfig
}

// DefaultConfig returns sane defaults for local/offline indexing.
func DefaultConfig() IngestionConfig {
	return IngestionConfig{
		ParserMode:        DefaultParserMode,
		EmbeddingProvider: "mock",
		MaxFileSizeBytes:  1024 * 1024,
		MaxCodeTextBytes:  100 * 1024,
		ExcludeGlobs: []string{
			"node_modules/**",
			".git/**",
			"vendor/**",
			"__pycache__/**",
			"venv/**",
			".venv/**",
		},
		Concurrency: ConcurrencyConfig{
			ParseWorkers: 4,
			EmbedWorkers: 8,
		},
		LocalDataDir:         "~/.cie/data",
		LocalEngine:          "sqlite",
		BatchTargetMutations: 2000,
		WriteMode:            "bulk",
		CheckpointPath:       "~/.cie/checkpoints",
	}
}
