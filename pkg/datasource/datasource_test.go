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

package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemStoreGetReturnsRegisteredSource(t *testing.T) {
	store := NewMemStore()
	store.Add("u1", DataSource{ID: "r1", Name: "example/repo"})

	ds, err := store.Get(context.Background(), "r1")
	assert.NoError(t, err)
	assert.Equal(t, "example/repo", ds.Name)
}

func TestMemStoreGetReturnsErrNotFound(t *testing.T) {
	store := NewMemStore()

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemStoreListScopesToOwner(t *testing.T) {
	store := NewMemStore()
	store.Add("u1", DataSource{ID: "r1", Name: "repo one"})
	store.Add("u1", DataSource{ID: "r2", Name: "repo two"})
	store.Add("u2", DataSource{ID: "r3", Name: "someone else's"})

	out, err := store.List(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Len(t, out, 2)

	out2, err := store.List(context.Background(), "u2")
	assert.NoError(t, err)
	assert.Len(t, out2, 1)
	assert.Equal(t, "someone else's", out2[0].Name)
}
