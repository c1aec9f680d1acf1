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

// Package vectorstore provides the namespaced semantic index for CIE.
//
// Every point is written to one shared collection with a repo_id payload
// field, and every Upsert/Query/DeleteNamespace call attaches or filters
// on that field, reproducing Pinecone-style per-namespace isolation (the
// model the original Python backend used) on an engine whose native
// partitioning primitive is collections or payload filters, not literal
// namespaces.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Record is a single vector to upsert, addressed by a caller-supplied ID
// that must be stable across re-ingestion so a repeat upsert overwrites
// rather than duplicates (see PointID for how arbitrary string IDs are
// mapped onto Qdrant's UUID point-ID space).
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Match is a single top-k query hit.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Store is the vector-store contract consumed by the ingestion pipeline
// (writing function/method embeddings) and the query agent's semantic
// search tool (reading them back).
type Store interface {
	Upsert(ctx context.Context, namespace string, records []Record) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	Close() error
}

const namespaceField = "repo_id"

// QdrantStore implements Store against a Qdrant collection over its raw
// gRPC stubs, the way WessleyAI's engine/semantic package does, rather
// than through the higher-level REST client.
type QdrantStore struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collections pb.CollectionsClient
	collection string
}

// New dials Qdrant at addr (host:port gRPC) and binds to the given
// collection name. Callers should follow with EnsureCollection before
// first use.
func New(addr, collection string) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial qdrant %s: %w", addr, err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

var _ Store = (*QdrantStore)(nil)

// EnsureCollection creates the backing collection if it does not already
// exist, sized for dims-dimensional cosine-similarity vectors.
func (q *QdrantStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vectorstore: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", q.collection, err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantStore) Close() error {
	return q.conn.Close()
}

// Upsert writes records into the shared collection, tagging each point's
// payload with the namespace under namespaceField so Query and
// DeleteNamespace can scope to it.
func (q *QdrantStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		payload := toPayload(r.Metadata)
		payload[namespaceField] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: namespace}}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(namespace, r.ID)}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Vector}},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert %d points into %s: %w", len(records), namespace, err)
	}
	return nil
}

// Query performs k-NN similarity search scoped to namespace: results
// never leak points written under a different namespace.
func (q *QdrantStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	req := &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter: &pb.Filter{
			Must: []*pb.Condition{fieldMatch(namespaceField, namespace)},
		},
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query namespace %s: %w", namespace, err)
	}

	matches := make([]Match, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		matches[i] = Match{
			ID:       r.GetId().GetUuid(),
			Score:    r.GetScore(),
			Metadata: fromPayload(r.GetPayload()),
		}
	}
	return matches, nil
}

// DeleteNamespace removes every point tagged with namespace, the Qdrant
// analogue of the original's index.delete(delete_all=True, namespace=...).
func (q *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{Must: []*pb.Condition{fieldMatch(namespaceField, namespace)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete namespace %s: %w", namespace, err)
	}
	return nil
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func toPayload(metadata map[string]any) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(metadata))
	for k, v := range metadata {
		switch tv := v.(type) {
		case string:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return payload
}

func fromPayload(payload map[string]*pb.Value) map[string]any {
	metadata := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			if k == namespaceField {
				continue
			}
			metadata[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			metadata[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			metadata[k] = kind.DoubleValue
		case *pb.Value_BoolValue:
			metadata[k] = kind.BoolValue
		}
	}
	return metadata
}

// PointID derives a deterministic Qdrant UUID from a namespace and a
// caller ID, preserving the original's vector-ID convention of
// "{data_source_id}:{file_path}:{function_name}" being stable across
// re-ingestion (so a repeat upsert overwrites) while satisfying Qdrant's
// requirement that point IDs be a UUID or unsigned integer rather than
// an arbitrary string.
func PointID(namespace, id string) string {
	sum := sha256.Sum256([]byte(namespace + ":" + id))
	b := sum[:16]
	b[6] = (b[6] & 0x0f) | 0x50 // version 5
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
