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

package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider records how many texts it was asked to embed and can be
// told to fail on a specific call index.
type countingProvider struct {
	calls   []string
	failIdx int
}

func (c *countingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	idx := len(c.calls)
	c.calls = append(c.calls, text)
	if idx == c.failIdx {
		return nil, errors.New("embedding provider unavailable")
	}
	return []float32{1, 2, 3}, nil
}

func TestEmbedChunksEmbedsEveryText(t *testing.T) {
	provider := &countingProvider{failIdx: -1}
	gen := NewEmbeddingGenerator(provider, 1, nil)

	out, err := gen.EmbedChunks(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, e := range out {
		assert.Equal(t, []float32{1, 2, 3}, e)
	}
	assert.Len(t, provider.calls, 3)
}

func TestEmbedChunksLeavesNilEntryOnUnrecoverableFailure(t *testing.T) {
	provider := &countingProvider{failIdx: 1}
	gen := NewEmbeddingGenerator(provider, 1, nil)
	gen.SetRetryConfig(RetryConfig{MaxRetries: 1})

	out, err := gen.EmbedChunks(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Nil(t, out[1])
	assert.NotNil(t, out[0])
	assert.NotNil(t, out[2])
}

func TestEmbedChunksHandlesEmptyInput(t *testing.T) {
	gen := NewEmbeddingGenerator(&countingProvider{failIdx: -1}, 1, nil)
	out, err := gen.EmbedChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
