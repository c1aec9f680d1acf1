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

// Package graphstore implements the Store interface twice: once against a
// live Neo4j database (Neo4jStore, the default for a deployed CIE), and
// once against the embedded CozoDB backend already shipped in
// pkg/storage (EmbeddedStore, for offline single-repo CLI use). Both
// produce the same Directory/File/Class/Function node shape and the
// same CONTAINS/DEFINES_CLASS/DEFINES_FUNCTION/HAS_METHOD/INHERITS_FROM/
// CALLS/IMPORTS relationships described by the code intelligence spec;
// callers select one at startup and depend only on the Store interface.
//
// Example:
//
//	driver, err := graphstore.NewDriver(ctx, graphstore.DriverConfig{
//		URI:      "neo4j://localhost:7687",
//		Username: "neo4j",
//		Password: os.Getenv("NEO4J_PASSWORD"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := graphstore.NewNeo4jStore(driver)
//	defer store.Close(ctx)
//
//	if err := store.UpsertFile(ctx, repoID, "main.go"); err != nil {
//		log.Fatal(err)
//	}
package graphstore
