// Package qdrant adapts a Qdrant collection into a retriever.VectorStore,
// grounded in Tangerg-lynx's ai/providers/vectorstores/qdrant store: the
// same query-points-with-filter-and-payload shape, restated directly
// against github.com/qdrant/go-client/qdrant rather than through an
// intermediate vector-store abstraction this module does not otherwise
// need.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/opencode-ai/orchestrator/retriever"
)

// Store is a retriever.VectorStore backed by a Qdrant collection.
type Store struct {
	client         *qdrant.Client
	collectionName string
}

// New constructs a Store over an existing Qdrant collection. Collection
// creation and embedding-dimension schema setup are deployment concerns
// left to the caller, mirroring the teacher's constructor-injection style.
func New(client *qdrant.Client, collectionName string) *Store {
	return &Store{client: client, collectionName: collectionName}
}

// Search implements retriever.VectorStore.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter retriever.Filter) ([]retriever.Chunk, error) {
	query := &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          u64Ptr(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if f := toQdrantFilter(filter); f != nil {
		query.Filter = f
	}
	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}
	chunks := make([]retriever.Chunk, len(points))
	for i, p := range points {
		chunks[i] = toChunk(p)
	}
	return chunks, nil
}

// Corpus implements retriever.VectorStore by scrolling the full collection
// (up to bm25.MaxDocuments, enforced by the caller) for BM25 indexing.
func (s *Store) Corpus(ctx context.Context, filter retriever.Filter) ([]retriever.Chunk, error) {
	scroll := &qdrant.ScrollPoints{
		CollectionName: s.collectionName,
		WithPayload:    qdrant.NewWithPayload(true),
		Limit:          u32Ptr(1000),
	}
	if f := toQdrantFilter(filter); f != nil {
		scroll.Filter = f
	}
	points, err := s.client.Scroll(ctx, scroll)
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll: %w", err)
	}
	chunks := make([]retriever.Chunk, len(points))
	for i, p := range points {
		chunks[i] = toChunkFromScroll(p)
	}
	return chunks, nil
}

func toQdrantFilter(filter retriever.Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	var must []*qdrant.Condition
	for key, values := range filter {
		if len(values) == 1 {
			must = append(must, qdrant.NewMatch(key, values[0]))
			continue
		}
		must = append(must, qdrant.NewMatchKeywords(key, values...))
	}
	return &qdrant.Filter{Must: must}
}

func toChunk(p *qdrant.ScoredPoint) retriever.Chunk {
	meta := payloadToMetadata(p.Payload)
	return retriever.Chunk{
		ID:       pointIDString(p.Id),
		Text:     payloadString(p.Payload, "text"),
		Metadata: meta,
		Score:    float64(p.Score),
	}
}

func toChunkFromScroll(p *qdrant.RetrievedPoint) retriever.Chunk {
	meta := payloadToMetadata(p.Payload)
	return retriever.Chunk{
		ID:       pointIDString(p.Id),
		Text:     payloadString(p.Payload, "text"),
		Metadata: meta,
	}
}

func payloadToMetadata(payload map[string]*qdrant.Value) retriever.Metadata {
	return retriever.Metadata{
		FileName:    payloadString(payload, "file_name"),
		PageLabel:   payloadString(payload, "page_label"),
		ContentType: payloadString(payload, "content_type"),
	}
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func u64Ptr(v uint64) *uint64 { return &v }
func u32Ptr(v uint32) *uint32 { return &v }
