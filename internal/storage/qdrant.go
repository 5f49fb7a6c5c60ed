package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("storage.qdrant")

// scrollPageSize is the number of papers fetched per Scroll request.
const scrollPageSize = 256

// QdrantConfig holds connection settings for the Qdrant gRPC API.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantStorage implements Store on top of Qdrant collections.
// Papers live in a vectorless collection; each chunk field gets its own
// collection, reachable through an alias named after its search index.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(cfg QdrantConfig) (*QdrantStorage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client: client,
		host:   cfg.Host,
		port:   cfg.Port,
	}

	if err := storage.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return storage, nil
}

func newRetryBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error { return s.Health(ctx) }, newRetryBackOff(ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsurePapers creates the papers collection and its payload index.
// Idempotent - safe to call multiple times.
func (s *QdrantStorage) EnsurePapers(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, PapersCollection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: PapersCollection,
		VectorsConfig:  qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return s.createKeywordIndex(ctx, PapersCollection, "paper_id")
}

func (s *QdrantStorage) createKeywordIndex(ctx context.Context, collection, field string) error {
	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      field,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for field %s: %w", field, err)
	}
	return nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, newRetryBackOff(ctx))
}

// InsertPapers stores papers in a single upsert request.
func (s *QdrantStorage) InsertPapers(ctx context.Context, papers []Paper) error {
	ctx, span := tracer.Start(ctx, "qdrant.InsertPapers",
		trace.WithAttributes(attribute.Int("papers.count", len(papers))))
	defer span.End()

	if len(papers) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(papers))
	for i, p := range papers {
		payload, err := qdrant.TryValueMap(paperPayload(p))
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("paper %s payload: %w", p.ID, err)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.PointID()),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
			Payload: payload,
		}
	}

	if err := s.upsertWithRetry(ctx, PapersCollection, points); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert papers: %w", err)
	}
	return nil
}

func paperPayload(p Paper) map[string]any {
	authors := make([]any, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = a.FullName
	}
	payload := map[string]any{
		"paper_id":         p.ID,
		"title":            p.Title,
		"abstract":         p.Abstract,
		"authors":          authors,
		"ordinal":          p.Ordinal,
		"publication_date": nil,
	}
	if p.PublicationDate != nil {
		payload["publication_date"] = p.PublicationDate.String()
	}
	return payload
}

func paperFromPayload(payload map[string]*qdrant.Value) Paper {
	p := Paper{
		ID:       payload["paper_id"].GetStringValue(),
		Title:    payload["title"].GetStringValue(),
		Abstract: payload["abstract"].GetStringValue(),
		Ordinal:  int(payload["ordinal"].GetIntegerValue()),
		Authors:  []Author{},
	}
	if raw := payload["publication_date"].GetStringValue(); raw != "" {
		if d, err := ParseDate(raw); err == nil {
			p.PublicationDate = &d
		}
	}
	if list := payload["authors"].GetListValue(); list != nil {
		for _, v := range list.Values {
			p.Authors = append(p.Authors, Author{FullName: v.GetStringValue()})
		}
	}
	return p
}

// ListPapers scrolls through the papers collection and returns the corpus
// in ordinal order.
func (s *QdrantStorage) ListPapers(ctx context.Context) ([]Paper, error) {
	ctx, span := tracer.Start(ctx, "qdrant.ListPapers")
	defer span.End()

	var papers []Paper
	var offset *qdrant.PointId

	for {
		// One extra point is requested; its id is the inclusive offset
		// of the next page.
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: PapersCollection,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize + 1)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scroll papers: %w", err)
		}

		offset = nil
		if len(results) > scrollPageSize {
			offset = results[scrollPageSize].Id
			results = results[:scrollPageSize]
		}
		for _, r := range results {
			papers = append(papers, paperFromPayload(r.Payload))
		}
		if offset == nil {
			break
		}
	}

	slices.SortStableFunc(papers, func(a, b Paper) int { return a.Ordinal - b.Ordinal })
	span.SetAttributes(attribute.Int("papers.count", len(papers)))
	return papers, nil
}

// GetPapers fetches papers by id with a single request.
func (s *QdrantStorage) GetPapers(ctx context.Context, ids []string) ([]Paper, error) {
	ctx, span := tracer.Start(ctx, "qdrant.GetPapers",
		trace.WithAttributes(attribute.Int("papers.requested", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return []Paper{}, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(Paper{ID: id}.PointID())
	}

	results, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: PapersCollection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get papers: %w", err)
	}

	byID := make(map[string]Paper, len(results))
	for _, r := range results {
		p := paperFromPayload(r.Payload)
		byID[p.ID] = p
	}

	papers := make([]Paper, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			papers = append(papers, p)
			delete(byID, id)
		}
	}
	return papers, nil
}

// PrepareChunkCollection creates the chunk collection for field with HNSW
// indexing disabled. Indexing is switched on by CreateSearchIndex once the
// bulk load is done.
func (s *QdrantStorage) PrepareChunkCollection(ctx context.Context, field Field, dimension int) error {
	collection := ChunkCollection(field)
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			VectorPath: {
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
		HnswConfig: &qdrant.HnswConfigDiff{M: qdrant.PtrOf(uint64(0))},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	return nil
}

// InsertChunks stores chunks of field in a single upsert request.
func (s *QdrantStorage) InsertChunks(ctx context.Context, field Field, chunks []Chunk) error {
	ctx, span := tracer.Start(ctx, "qdrant.InsertChunks",
		trace.WithAttributes(
			attribute.String("chunks.field", string(field)),
			attribute.Int("chunks.count", len(chunks)),
		))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id: qdrant.NewIDUUID(c.PointID()),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				VectorPath: qdrant.NewVector(c.Vector...),
			}),
			Payload: qdrant.NewValueMap(map[string]any{
				"paper_id": c.PaperID,
				"text":     c.Text,
				"field":    string(c.Field),
				"key":      c.Key,
			}),
		}
	}

	if err := s.upsertWithRetry(ctx, ChunkCollection(field), points); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

// CreateSearchIndex verifies the collection's vector parameters against def,
// builds the HNSW graph and publishes the collection under def.Name.
func (s *QdrantStorage) CreateSearchIndex(ctx context.Context, def IndexDefinition) error {
	collection := ChunkCollection(def.Field)

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCollectionNotFound, collection, err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap()[def.Path]
	if params == nil {
		return fmt.Errorf("%w: collection %s has no vector %q", ErrIndexNotFound, collection, def.Path)
	}
	if params.GetSize() != uint64(def.Dimension) {
		return fmt.Errorf("%w: index %s declares %d, collection has %d",
			ErrDimensionMismatch, def.Name, def.Dimension, params.GetSize())
	}
	if def.Similarity == SimilarityCosine && params.GetDistance() != qdrant.Distance_Cosine {
		return fmt.Errorf("collection %s uses %s distance, index requires cosine", collection, params.GetDistance())
	}

	err = s.client.UpdateCollection(ctx, &qdrant.UpdateCollection{
		CollectionName: collection,
		HnswConfig:     &qdrant.HnswConfigDiff{M: qdrant.PtrOf(uint64(16))},
	})
	if err != nil {
		return fmt.Errorf("failed to enable hnsw on %s: %w", collection, err)
	}

	if err := s.createKeywordIndex(ctx, collection, "paper_id"); err != nil {
		return err
	}

	// An alias left over from a previous run would point at a dropped collection.
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return fmt.Errorf("failed to list aliases: %w", err)
	}
	if hasAlias(aliases, def.Name) {
		if err := s.client.DeleteAlias(ctx, def.Name); err != nil {
			return fmt.Errorf("failed to delete alias %s: %w", def.Name, err)
		}
	}
	if err := s.client.CreateAlias(ctx, def.Name, collection); err != nil {
		return fmt.Errorf("failed to create alias %s: %w", def.Name, err)
	}
	return nil
}

func hasAlias(aliases []*qdrant.AliasDescription, name string) bool {
	for _, a := range aliases {
		if a.GetAliasName() == name {
			return true
		}
	}
	return false
}

// SearchChunks performs vector similarity search through the index alias.
func (s *QdrantStorage) SearchChunks(ctx context.Context, q VectorQuery) ([]Chunk, error) {
	ctx, span := tracer.Start(ctx, "qdrant.SearchChunks",
		trace.WithAttributes(
			attribute.String("index.name", q.IndexName),
			attribute.Int("query.limit", q.Limit),
			attribute.Int("query.candidates", q.NumCandidates),
		))
	defer span.End()

	if q.Limit <= 0 {
		return []Chunk{}, nil
	}

	using := q.Path
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.IndexName,
		Query:          qdrant.NewQuery(q.Vector...),
		Using:          &using,
		Params:         &qdrant.SearchParams{HnswEf: qdrant.PtrOf(uint64(q.NumCandidates))},
		Limit:          qdrant.PtrOf(uint64(q.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, Chunk{
			PaperID: r.Payload["paper_id"].GetStringValue(),
			Text:    r.Payload["text"].GetStringValue(),
			Field:   Field(r.Payload["field"].GetStringValue()),
			Score:   r.Score,
		})
	}
	span.SetAttributes(attribute.Int("results.count", len(chunks)))
	return chunks, nil
}

// Reset drops the papers collection and every chunk collection.
func (s *QdrantStorage) Reset(ctx context.Context) error {
	for _, name := range []string{
		PapersCollection,
		ChunkCollection(FieldTitle),
		ChunkCollection(FieldAbstract),
	} {
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check collection: %w", err)
		}
		if !exists {
			continue
		}
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to delete collection %s: %w", name, err)
		}
	}
	return nil
}

// Stats reports point counts per collection. Missing collections count
// as empty; a field is indexed when its search alias exists.
func (s *QdrantStorage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Chunks:  make(map[Field]int),
		Indexed: make(map[Field]bool),
	}

	count := func(name string) (int, bool, error) {
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil || !exists {
			return 0, false, err
		}
		info, err := s.GetCollectionInfo(ctx, name)
		if err != nil {
			return 0, true, err
		}
		return int(info.PointsCount), true, nil
	}

	n, _, err := count(PapersCollection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	stats.Papers = n

	for _, field := range []Field{FieldTitle, FieldAbstract} {
		collection := ChunkCollection(field)
		n, exists, err := count(collection)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
		}
		stats.Chunks[field] = n
		if !exists {
			continue
		}
		aliases, err := s.client.ListCollectionAliases(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("failed to list aliases of %s: %w", collection, err)
		}
		stats.Indexed[field] = slices.Contains(aliases, IndexName(field))
	}
	return stats, nil
}

// CollectionInfo contains collection statistics.
type CollectionInfo struct {
	PointsCount uint64
}

// GetCollectionInfo retrieves statistics of a collection.
func (s *QdrantStorage) GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &CollectionInfo{PointsCount: info.GetPointsCount()}, nil
}
