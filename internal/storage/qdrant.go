package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Tornshorts/RAG-Tutorial/internal/models"
)

// pointNamespace derives Qdrant point UUIDs from chunk IDs.
var pointNamespace = uuid.MustParse("5b1e0c4e-3f7a-4d3e-9a51-6c2f0e7d8b94")

const scrollPageSize = 256

// Payload keys stored with every point.
const (
	payloadID     = "id"
	payloadText   = "text"
	payloadSource = "source"
	payloadPage   = "page"
)

// QdrantStore keeps entries as points in one Qdrant collection over gRPC.
// The collection is created on the first Insert, once the vector size is known.
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	collection  string
	logger      *zap.Logger

	mu sync.RWMutex
}

// NewQdrantStore dials addr (host:port of the gRPC API) and verifies the server responds.
func NewQdrantStore(ctx context.Context, addr, collection string, opts ...Option) (*QdrantStore, error) {
	o := buildOptions(opts)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, unavailable("dial qdrant %s: %v", addr, err)
	}
	s := &QdrantStore{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		collection:  collection,
		logger:      o.logger,
	}
	if _, err := s.exists(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// PointID returns the Qdrant point UUID for a chunk ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func (s *QdrantStore) exists(ctx context.Context) (bool, error) {
	resp, err := s.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return false, unavailable("list qdrant collections: %v", err)
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

func (s *QdrantStore) create(ctx context.Context, size int) error {
	_, err := s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(size),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection %s: %w", s.collection, err)
	}
	s.logger.Info("Created qdrant collection", zap.String("collection", s.collection), zap.Int("size", size))
	return nil
}

// ExistingIDs scrolls the collection and returns the chunk IDs from point payloads.
func (s *QdrantStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{})
	err := s.scroll(ctx, func(p *qdrant.RetrievedPoint) {
		if id := p.GetPayload()[payloadID].GetStringValue(); id != "" {
			ids[id] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// scroll visits every point. A missing collection visits nothing. Caller holds mu.
func (s *QdrantStore) scroll(ctx context.Context, visit func(*qdrant.RetrievedPoint)) error {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return err
	}
	limit := uint32(scrollPageSize)
	var offset *qdrant.PointId
	for {
		resp, err := s.points.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return unavailable("scroll qdrant collection: %v", err)
		}
		for _, p := range resp.GetResult() {
			visit(p)
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return nil
		}
	}
}

// Insert upserts all entries in a single request and waits for it to be applied.
func (s *QdrantStore) Insert(ctx context.Context, entries []*models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := len(entries[0].Embedding)
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) == 0 || len(e.Embedding) != dim {
			return fmt.Errorf("entry %s: embedding has %d dimensions, batch uses %d", e.ID, len(e.Embedding), dim)
		}
		points = append(points, toPoint(e))
	}

	ok, err := s.exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		if err := s.create(ctx, dim); err != nil {
			return err
		}
	}

	wait := true
	if _, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

func toPoint(e *models.IndexEntry) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{Uuid: PointID(e.ID)},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: e.Embedding},
			},
		},
		Payload: map[string]*qdrant.Value{
			payloadID:     {Kind: &qdrant.Value_StringValue{StringValue: e.ID}},
			payloadText:   {Kind: &qdrant.Value_StringValue{StringValue: e.Text}},
			payloadSource: {Kind: &qdrant.Value_StringValue{StringValue: e.Metadata.Source}},
			payloadPage:   {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(e.Metadata.Page)}},
		},
	}
}

func fromPayload(payload map[string]*qdrant.Value) *models.IndexEntry {
	id := payload[payloadID].GetStringValue()
	return &models.IndexEntry{
		ID:   id,
		Text: payload[payloadText].GetStringValue(),
		Metadata: models.EntryMetadata{
			Source: payload[payloadSource].GetStringValue(),
			Page:   int(payload[payloadPage].GetIntegerValue()),
			ID:     id,
		},
	}
}

// Query runs a cosine search in the collection.
func (s *QdrantStore) Query(ctx context.Context, embedding []float32, k int) ([]*models.ScoredEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.ScoredEntry{}
	if k <= 0 {
		return out, nil
	}
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return out, err
	}
	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	for _, p := range resp.GetResult() {
		out = append(out, &models.ScoredEntry{Entry: fromPayload(p.GetPayload()), Score: float64(p.GetScore())})
	}
	return out, nil
}

// Count returns the exact number of points.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	exact := true
	resp, err := s.points.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection, Exact: &exact})
	if err != nil {
		return 0, unavailable("count qdrant points: %v", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Stats scrolls the collection to collect distinct sources.
func (s *QdrantStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	n := 0
	err := s.scroll(ctx, func(p *qdrant.RetrievedPoint) {
		n++
		seen[p.GetPayload()[payloadSource].GetStringValue()] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	stats := &models.StoreStats{Entries: n, Sources: make([]string, 0, len(seen))}
	for src := range seen {
		stats.Sources = append(stats.Sources, src)
	}
	sort.Strings(stats.Sources)
	return stats, nil
}

// Reset deletes the collection. It is recreated by the next Insert.
func (s *QdrantStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return err
	}
	if _, err := s.collections.Delete(ctx, &qdrant.DeleteCollection{CollectionName: s.collection}); err != nil {
		return fmt.Errorf("delete qdrant collection %s: %w", s.collection, err)
	}
	s.logger.Info("Deleted qdrant collection", zap.String("collection", s.collection))
	return nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}
