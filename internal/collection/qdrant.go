package collection

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hyperjump/meibo/internal/models"
)

const (
	payloadKeyID       = "_id"
	payloadKeyDocument = "_document"
)

// QdrantCollection is a Collection backed by a remote Qdrant instance over
// grpc. Qdrant point ids must be UUIDs or integers, so entry ids are mapped
// to deterministic UUIDv5 values and the original id is kept in the payload.
type QdrantCollection struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	name        string
	dimensions  int
}

// NewQdrantCollection connects to Qdrant at host:port and ensures the named
// collection exists with cosine distance and the given dimensionality.
func NewQdrantCollection(ctx context.Context, host string, port int, name string, dimensions int) (*QdrantCollection, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant connect: %v", models.ErrStore, err)
	}
	c := &QdrantCollection{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		name:        name,
		dimensions:  dimensions,
	}
	if err := c.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *QdrantCollection) ensureCollection(ctx context.Context) error {
	resp, err := c.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: qdrant list collections: %v", models.ErrStore, err)
	}
	for _, desc := range resp.Collections {
		if desc.Name == c.name {
			return nil
		}
	}
	_, err = c.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: c.name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(c.dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant create collection %s: %v", models.ErrStore, c.name, err)
	}
	return nil
}

// pointID maps an entry id to a deterministic UUID accepted by Qdrant.
func (c *QdrantCollection) pointID(id string) *pb.PointId {
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte("meibo/"+id)).String()
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: u}}
}

// Upsert inserts or replaces the entry with the same id.
func (c *QdrantCollection) Upsert(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("%w: entry id is required", models.ErrStore)
	}
	if len(entry.Embedding) != c.dimensions {
		return fmt.Errorf("%w: embedding dimension mismatch: got %d, expected %d",
			models.ErrStore, len(entry.Embedding), c.dimensions)
	}
	payload := map[string]*pb.Value{
		payloadKeyID:       {Kind: &pb.Value_StringValue{StringValue: entry.ID}},
		payloadKeyDocument: {Kind: &pb.Value_StringValue{StringValue: entry.Document}},
	}
	for k, v := range entry.Metadata {
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}
	_, err := c.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: c.name,
		Points: []*pb.PointStruct{{
			Id:      c.pointID(entry.ID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: entry.Embedding}}},
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant upsert %s: %v", models.ErrStore, entry.ID, err)
	}
	return nil
}

// Delete removes the entry if present; a missing id is a no-op on Qdrant.
func (c *QdrantCollection) Delete(ctx context.Context, id string) error {
	return c.deletePoints(ctx, []*pb.PointId{c.pointID(id)})
}

func (c *QdrantCollection) deletePoints(ctx context.Context, ids []*pb.PointId) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: c.name,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant delete: %v", models.ErrStore, err)
	}
	return nil
}

// DeleteWhere scrolls all points, evaluates pred client-side, and deletes the
// matches in one call.
func (c *QdrantCollection) DeleteWhere(ctx context.Context, pred Predicate) (int, error) {
	points, err := c.scrollAll(ctx, false)
	if err != nil {
		return 0, err
	}
	var ids []*pb.PointId
	for _, pt := range points {
		id, md, _ := splitPayload(pt.Payload)
		if pred(id, md) {
			ids = append(ids, pt.Id)
		}
	}
	if err := c.deletePoints(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Get returns the entry with the given id, or ErrNotFound.
func (c *QdrantCollection) Get(ctx context.Context, id string) (*Entry, error) {
	resp, err := c.points.Get(ctx, &pb.GetPoints{
		CollectionName: c.name,
		Ids:            []*pb.PointId{c.pointID(id)},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant get %s: %v", models.ErrStore, id, err)
	}
	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("%w: entry %s", models.ErrNotFound, id)
	}
	return retrievedToEntry(resp.Result[0]), nil
}

// GetAll returns every entry.
func (c *QdrantCollection) GetAll(ctx context.Context) ([]*Entry, error) {
	points, err := c.scrollAll(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(points))
	for _, pt := range points {
		out = append(out, retrievedToEntry(pt))
	}
	return out, nil
}

func (c *QdrantCollection) scrollAll(ctx context.Context, withVectors bool) ([]*pb.RetrievedPoint, error) {
	var out []*pb.RetrievedPoint
	limit := uint32(256)
	var offset *pb.PointId
	for {
		req := &pb.ScrollPoints{
			CollectionName: c.name,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		}
		if withVectors {
			req.WithVectors = &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}}
		}
		resp, err := c.points.Scroll(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: qdrant scroll: %v", models.ErrStore, err)
		}
		out = append(out, resp.Result...)
		if resp.NextPageOffset == nil {
			return out, nil
		}
		offset = resp.NextPageOffset
	}
}

// Count returns the number of entries.
func (c *QdrantCollection) Count(ctx context.Context) (int64, error) {
	exact := true
	resp, err := c.points.Count(ctx, &pb.CountPoints{
		CollectionName: c.name,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant count: %v", models.ErrStore, err)
	}
	return int64(resp.Result.Count), nil
}

// Query delegates to Qdrant's similarity search. Qdrant scores cosine as a
// similarity (higher = closer), so hits are mapped to distance = 1 - score.
func (c *QdrantCollection) Query(ctx context.Context, embedding []float32, k int) ([]*Hit, error) {
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: query dimension mismatch: got %d, expected %d",
			models.ErrStore, len(embedding), c.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	resp, err := c.points.Search(ctx, &pb.SearchPoints{
		CollectionName: c.name,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant search: %v", models.ErrStore, err)
	}
	hits := make([]*Hit, 0, len(resp.Result))
	for _, pt := range resp.Result {
		id, md, doc := splitPayload(pt.Payload)
		distance := 1 - float64(pt.Score)
		if distance < 0 {
			distance = 0
		}
		hits = append(hits, &Hit{ID: id, Document: doc, Metadata: md, Distance: distance})
	}
	return hits, nil
}

// Close closes the grpc connection.
func (c *QdrantCollection) Close() error {
	return c.conn.Close()
}

func splitPayload(payload map[string]*pb.Value) (id string, metadata map[string]string, document string) {
	for k, v := range payload {
		switch k {
		case payloadKeyID:
			id = v.GetStringValue()
		case payloadKeyDocument:
			document = v.GetStringValue()
		default:
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata[k] = v.GetStringValue()
		}
	}
	return id, metadata, document
}

func retrievedToEntry(pt *pb.RetrievedPoint) *Entry {
	id, md, doc := splitPayload(pt.Payload)
	entry := &Entry{ID: id, Document: doc, Metadata: md}
	if vectors := pt.Vectors; vectors != nil {
		if v := vectors.GetVector(); v != nil {
			entry.Embedding = append([]float32(nil), v.Data...)
		}
	}
	return entry
}
