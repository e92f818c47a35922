package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tieubaoca/context-curator/config"
	"github.com/tieubaoca/context-curator/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	propContent   = "content"
	propDocID     = "docId"
	propTopic     = "topic"
	propMetadata  = "metadata"
	propCreatedAt = "createdAt"
)

// documentNamespace seeds the UUIDv5 object ids derived from caller ids.
var documentNamespace = uuid.MustParse("6f1c3c55-7f0e-4c4e-9a55-3a1f4f1e2b7d")

// WeaviateStore keeps each collection in its own Weaviate class. One store
// wraps one client and is shared by every flow.
type WeaviateStore struct {
	client       *weaviate.Client
	text2Vec     string
	distance     string
	moduleConfig map[string]interface{}

	mu      sync.Mutex
	classes sync.Map // class name -> struct{}, classes known to exist
}

func NewWeaviateStore(config config.WeaviateStoreConfig) (*WeaviateStore, error) {
	var scheme string
	if strings.HasPrefix(config.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(config.Host, scheme+"://")
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{
			Value: config.APIKey,
		}
		cfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     config.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return NewWeaviateStoreWithClient(client, config), nil
}

// NewWeaviateStoreWithClient wraps an already constructed client.
func NewWeaviateStoreWithClient(client *weaviate.Client, config config.WeaviateStoreConfig) *WeaviateStore {
	distance := config.Distance
	if distance == "" {
		distance = "cosine"
	}
	return &WeaviateStore{
		client:       client,
		text2Vec:     config.Text2Vec,
		distance:     distance,
		moduleConfig: config.ModuleConfig,
	}
}

// ClassName maps a collection name onto a valid Weaviate class name.
func ClassName(collection string) string {
	var b strings.Builder
	for _, r := range collection {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || !isASCIILetter(name[0]) {
		name = "C" + name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func objectID(collection, id string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(documentNamespace, []byte(collection+"/"+id)).String())
}

func (s *WeaviateStore) classObject(class string) *models.Class {
	skip := map[string]interface{}{}
	if s.text2Vec != "" && s.text2Vec != "none" {
		skip[s.text2Vec] = map[string]interface{}{"skip": true}
	}
	return &models.Class{
		Class: class,
		Properties: []*models.Property{
			{Name: propContent, DataType: []string{"text"}},
			{Name: propTopic, DataType: []string{"text"}},
			{Name: propDocID, DataType: []string{"text"}, ModuleConfig: skip},
			{Name: propMetadata, DataType: []string{"text"}, ModuleConfig: skip},
			{Name: propCreatedAt, DataType: []string{"int"}, ModuleConfig: skip},
		},
		Vectorizer:        s.text2Vec,
		ModuleConfig:      s.moduleConfig,
		VectorIndexType:   "hnsw",
		VectorIndexConfig: map[string]interface{}{"distance": s.distance},
	}
}

// ensureClass creates the class on first use and remembers it.
func (s *WeaviateStore) ensureClass(ctx context.Context, class string) error {
	if _, ok := s.classes.Load(class); ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes.Load(class); ok {
		return nil
	}
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check class %s: %w", class, err)
	}
	if !exists {
		if err := s.client.Schema().ClassCreator().WithClass(s.classObject(class)).Do(ctx); err != nil {
			return fmt.Errorf("failed to create class %s: %w", class, err)
		}
		log.Printf("Created weaviate class %s", class)
	}
	s.classes.Store(class, struct{}{})
	return nil
}

func toProperties(doc types.Document, createdAt int64) (map[string]interface{}, error) {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata of %q: %w", doc.ID, err)
	}
	return map[string]interface{}{
		propContent:   doc.Content,
		propDocID:     doc.ID,
		propTopic:     doc.Metadata.Topic(),
		propMetadata:  string(metadata),
		propCreatedAt: createdAt,
	}, nil
}

// upsert writes objects through the batch endpoint, which replaces an
// existing object with the same id in place.
func (s *WeaviateStore) upsert(ctx context.Context, collection string, docs []types.Document) error {
	class := ClassName(collection)
	if err := s.ensureClass(ctx, class); err != nil {
		return err
	}
	now := time.Now().Unix()
	batcher := s.client.Batch().ObjectsBatcher()
	for _, doc := range docs {
		props, err := toProperties(doc, now)
		if err != nil {
			return err
		}
		batcher = batcher.WithObjects(&models.Object{
			Class:      class,
			ID:         objectID(collection, doc.ID),
			Properties: props,
		})
	}
	resp, err := batcher.Do(ctx)
	if err != nil {
		return err
	}
	var failed []string
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, item := range r.Result.Errors.Error {
			failed = append(failed, item.Message)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d object(s) rejected: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

func (s *WeaviateStore) Add(ctx context.Context, collection string, docs []types.Document) ([]string, error) {
	prepared, err := prepareDocuments(docs)
	if err != nil {
		return nil, &types.StoreError{Op: "add", Collection: collection, Err: err}
	}
	if len(prepared) == 0 {
		return []string{}, nil
	}
	if err := s.upsert(ctx, collection, prepared); err != nil {
		return nil, &types.StoreError{Op: "add", Collection: collection, Err: err}
	}
	ids := make([]string, len(prepared))
	for i, doc := range prepared {
		ids[i] = doc.ID
	}
	log.Printf("Added %d document(s) to %s", len(ids), collection)
	return ids, nil
}

func (s *WeaviateStore) Update(ctx context.Context, collection string, doc types.Document) error {
	if doc.ID == "" {
		return &types.StoreError{Op: "update", Collection: collection, Err: errors.New("document id is required")}
	}
	prepared, err := prepareDocuments([]types.Document{doc})
	if err != nil {
		return &types.StoreError{Op: "update", Collection: collection, Err: err}
	}
	if err := s.upsert(ctx, collection, prepared); err != nil {
		return &types.StoreError{Op: "update", Collection: collection, Err: err}
	}
	return nil
}

var documentFields = []graphql.Field{
	{Name: propContent},
	{Name: propDocID},
	{Name: propMetadata},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
}

func (s *WeaviateStore) Query(ctx context.Context, collection, text string, k int) (types.QueryResult, error) {
	if k <= 0 {
		return nil, &types.StoreError{Op: "query", Collection: collection, Err: fmt.Errorf("k must be positive, got %d", k)}
	}
	class := ClassName(collection)
	if err := s.ensureClass(ctx, class); err != nil {
		return nil, &types.StoreError{Op: "query", Collection: collection, Err: err}
	}
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{text})
	result, err := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(documentFields...).
		WithNearText(nearText).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, &types.StoreError{Op: "query", Collection: collection, Err: err}
	}
	if len(result.Errors) > 0 {
		return nil, &types.StoreError{Op: "query", Collection: collection, Err: fmt.Errorf("search failed: %v", result.Errors[0].Message)}
	}
	hits, err := parseGetResult(result.Data, class)
	if err != nil {
		return nil, &types.StoreError{Op: "query", Collection: collection, Err: err}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *WeaviateStore) Get(ctx context.Context, collection, id string) (*types.Document, error) {
	objects, err := s.client.Data().ObjectsGetter().
		WithClassName(ClassName(collection)).
		WithID(string(objectID(collection, id))).
		Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, &types.StoreError{Op: "get", Collection: collection, Err: types.ErrNotFound}
		}
		return nil, &types.StoreError{Op: "get", Collection: collection, Err: err}
	}
	if len(objects) == 0 {
		return nil, &types.StoreError{Op: "get", Collection: collection, Err: types.ErrNotFound}
	}
	doc, err := documentFromProperties(objects[0].Properties, objects[0].ID.String())
	if err != nil {
		return nil, &types.StoreError{Op: "get", Collection: collection, Err: err}
	}
	return &doc, nil
}

func (s *WeaviateStore) DeleteDocument(ctx context.Context, collection, id string) error {
	err := s.client.Data().Deleter().
		WithClassName(ClassName(collection)).
		WithID(string(objectID(collection, id))).
		Do(ctx)
	if err != nil && !isNotFound(err) {
		return &types.StoreError{Op: "delete", Collection: collection, Err: err}
	}
	return nil
}

func (s *WeaviateStore) DeleteCollection(ctx context.Context, name string) error {
	class := ClassName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes.Delete(class)
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return &types.StoreError{Op: "delete collection", Collection: name, Err: err}
	}
	if !exists {
		return nil
	}
	err = s.client.Schema().ClassDeleter().WithClassName(class).Do(ctx)
	if err != nil && !isNotFound(err) {
		return &types.StoreError{Op: "delete collection", Collection: name, Err: err}
	}
	return nil
}

func (s *WeaviateStore) Stats(ctx context.Context, collection string) (types.CollectionStats, error) {
	class := ClassName(collection)
	if err := s.ensureClass(ctx, class); err != nil {
		return types.CollectionStats{}, &types.StoreError{Op: "stats", Collection: collection, Err: err}
	}
	meta := graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(class).
		WithFields(meta).
		Do(ctx)
	if err != nil {
		return types.CollectionStats{}, &types.StoreError{Op: "stats", Collection: collection, Err: err}
	}
	if len(result.Errors) > 0 {
		return types.CollectionStats{}, &types.StoreError{Op: "stats", Collection: collection, Err: fmt.Errorf("aggregate failed: %v", result.Errors[0].Message)}
	}
	count, err := parseAggregateCount(result.Data, class)
	if err != nil {
		return types.CollectionStats{}, &types.StoreError{Op: "stats", Collection: collection, Err: err}
	}
	return types.CollectionStats{Name: collection, Count: count}, nil
}

func (s *WeaviateStore) List(ctx context.Context, collection string, limit int) ([]types.Document, error) {
	class := ClassName(collection)
	if err := s.ensureClass(ctx, class); err != nil {
		return nil, &types.StoreError{Op: "list", Collection: collection, Err: err}
	}
	getter := s.client.Data().ObjectsGetter().WithClassName(class)
	if limit > 0 {
		getter = getter.WithLimit(limit)
	}
	objects, err := getter.Do(ctx)
	if err != nil {
		return nil, &types.StoreError{Op: "list", Collection: collection, Err: err}
	}
	docs := make([]types.Document, 0, len(objects))
	for _, obj := range objects {
		doc, err := documentFromProperties(obj.Properties, obj.ID.String())
		if err != nil {
			return nil, &types.StoreError{Op: "list", Collection: collection, Err: err}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func isNotFound(err error) bool {
	var werr *fault.WeaviateClientError
	return errors.As(err, &werr) && werr.StatusCode == http.StatusNotFound
}

// parseGetResult reads the hits of a GraphQL Get query for class.
func parseGetResult(data map[string]models.JSONObject, class string) (types.QueryResult, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return types.QueryResult{}, nil
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return types.QueryResult{}, nil
	}
	hits := make(types.QueryResult, 0, len(items))
	for _, item := range items {
		props, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var objID string
		var distance float64
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			objID, _ = additional["id"].(string)
			distance, _ = additional["distance"].(float64)
		}
		doc, err := documentFromProperties(props, objID)
		if err != nil {
			return nil, err
		}
		if distance < 0 {
			distance = 0
		}
		hits = append(hits, types.QueryHit{Document: doc, Distance: distance})
	}
	return hits, nil
}

func parseAggregateCount(data map[string]models.JSONObject, class string) (int, error) {
	aggregate, ok := data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, errors.New("aggregate result missing")
	}
	groups, ok := aggregate[class].([]interface{})
	if !ok || len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, errors.New("aggregate count missing")
	}
	return int(count), nil
}

// documentFromProperties rebuilds a Document from stored object properties.
// fallbackID is used for objects written without a docId.
func documentFromProperties(properties interface{}, fallbackID string) (types.Document, error) {
	props, ok := properties.(map[string]interface{})
	if !ok {
		return types.Document{}, fmt.Errorf("unexpected properties type %T", properties)
	}
	doc := types.Document{Metadata: types.Metadata{}}
	doc.Content, _ = props[propContent].(string)
	doc.ID, _ = props[propDocID].(string)
	if doc.ID == "" {
		doc.ID = fallbackID
	}
	if raw, _ := props[propMetadata].(string); raw != "" {
		metadata, err := decodeMetadata(raw)
		if err != nil {
			return types.Document{}, fmt.Errorf("failed to decode metadata of %q: %w", doc.ID, err)
		}
		doc.Metadata = metadata
	}
	return doc, nil
}

// decodeMetadata reverses the JSON encoding of toProperties. Integral numbers
// come back as int64, everything else numeric as float64.
func decodeMetadata(raw string) (types.Metadata, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	metadata := make(types.Metadata, len(m))
	for k, v := range m {
		n, ok := v.(json.Number)
		if !ok {
			metadata[k] = v
			continue
		}
		if i, err := n.Int64(); err == nil {
			metadata[k] = i
			continue
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		metadata[k] = f
	}
	return metadata, nil
}
