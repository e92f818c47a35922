package database

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/tieubaoca/context-curator/config"
	"github.com/tieubaoca/context-curator/types"
	"github.com/weaviate/weaviate/entities/models"
)

func TestClassName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"default_collection", "Default_collection"},
		{"screenshots_collection", "Screenshots_collection"},
		{"my-notes", "My_notes"},
		{"42things", "C42things"},
		{"", "C"},
		{"Already", "Already"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ClassName(tt.in); got != tt.want {
				t.Fatalf("ClassName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestObjectIDIsDeterministicPerCollection(t *testing.T) {
	a := objectID("default_collection", "screenshot_20250101_120000")
	b := objectID("default_collection", "screenshot_20250101_120000")
	c := objectID("other", "screenshot_20250101_120000")
	if a != b {
		t.Fatalf("ids differ: %s %s", a, b)
	}
	if a == c {
		t.Fatal("ids collide across collections")
	}
	if len(a.String()) != 36 {
		t.Fatalf("not a uuid: %s", a)
	}
}

func TestToPropertiesRoundTrip(t *testing.T) {
	doc := types.Document{
		ID:       "doc-1",
		Content:  "Here is information about Stanford University.",
		Metadata: types.Metadata{"topic": "Stanford University", "flow": "passive", "page": 3, "score": 0.5, "pinned": true},
	}
	props, err := toProperties(doc, 1700000000)
	if err != nil {
		t.Fatalf("toProperties: %v", err)
	}
	if props[propTopic] != "Stanford University" {
		t.Fatalf("topic property = %v", props[propTopic])
	}
	got, err := documentFromProperties(map[string]interface{}{
		propContent:  props[propContent],
		propDocID:    props[propDocID],
		propMetadata: props[propMetadata],
	}, "ignored")
	if err != nil {
		t.Fatalf("documentFromProperties: %v", err)
	}
	if got.ID != "doc-1" || got.Content != doc.Content || got.Metadata.Topic() != "Stanford University" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if page, ok := got.Metadata["page"].(int64); !ok || page != 3 {
		t.Fatalf("page = %#v, want int64 3", got.Metadata["page"])
	}
	if score, ok := got.Metadata["score"].(float64); !ok || score != 0.5 {
		t.Fatalf("score = %#v, want float64 0.5", got.Metadata["score"])
	}
	if got.Metadata["pinned"] != true {
		t.Fatalf("pinned = %#v", got.Metadata["pinned"])
	}
}

func TestParseGetResult(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"Default_collection": []interface{}{
				map[string]interface{}{
					"content":  "first",
					"docId":    "a",
					"metadata": `{"topic":"A"}`,
					"_additional": map[string]interface{}{
						"id":       "11111111-1111-1111-1111-111111111111",
						"distance": 0.12,
					},
				},
				map[string]interface{}{
					"content":  "legacy",
					"metadata": "",
					"_additional": map[string]interface{}{
						"id":       "22222222-2222-2222-2222-222222222222",
						"distance": 0.5,
					},
				},
			},
		},
	}
	hits, err := parseGetResult(data, "Default_collection")
	if err != nil {
		t.Fatalf("parseGetResult: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Document.ID != "a" || hits[0].Distance != 0.12 || hits[0].Document.Metadata.Topic() != "A" {
		t.Fatalf("first hit = %+v", hits[0])
	}
	if hits[1].Document.ID != "22222222-2222-2222-2222-222222222222" {
		t.Fatalf("fallback id not used: %+v", hits[1])
	}

	empty, err := parseGetResult(map[string]models.JSONObject{"Get": map[string]interface{}{"Default_collection": nil}}, "Default_collection")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result, got %v %v", empty, err)
	}
}

func TestParseAggregateCount(t *testing.T) {
	data := map[string]models.JSONObject{
		"Aggregate": map[string]interface{}{
			"Default_collection": []interface{}{
				map[string]interface{}{
					"meta": map[string]interface{}{"count": float64(7)},
				},
			},
		},
	}
	count, err := parseAggregateCount(data, "Default_collection")
	if err != nil {
		t.Fatalf("parseAggregateCount: %v", err)
	}
	if count != 7 {
		t.Fatalf("count = %d, want 7", count)
	}
	if _, err := parseAggregateCount(map[string]models.JSONObject{}, "X"); err == nil {
		t.Fatal("expected error for missing aggregate")
	}
}

var (
	gqlClassPattern = regexp.MustCompile(`(Get|Aggregate)\s*\{\s*(\w+)`)
	gqlLimitPattern = regexp.MustCompile(`limit:\s*(\d+)`)
)

// fakeWeaviate serves the subset of the Weaviate REST and GraphQL API the
// store uses. Batch objects whose content contains "reject" are refused.
type fakeWeaviate struct {
	mu      sync.Mutex
	classes map[string]map[string]map[string]interface{} // class -> object id -> properties
}

func newFakeWeaviate(t *testing.T) (*fakeWeaviate, *WeaviateStore) {
	t.Helper()
	fake := &fakeWeaviate{classes: make(map[string]map[string]map[string]interface{})}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	store, err := NewWeaviateStore(config.WeaviateStoreConfig{Host: srv.URL, Text2Vec: "none"})
	if err != nil {
		t.Fatalf("NewWeaviateStore: %v", err)
	}
	return fake, store
}

func (f *fakeWeaviate) hasClass(class string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.classes[class]
	return ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": []map[string]string{{"message": "not found"}}})
}

func (f *fakeWeaviate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	switch {
	case path == "/v1/meta":
		writeJSON(w, http.StatusOK, map[string]string{"version": "1.27.0"})
	case strings.HasPrefix(path, "/v1/schema"):
		f.serveSchema(w, r, strings.Trim(strings.TrimPrefix(path, "/v1/schema"), "/"))
	case path == "/v1/batch/objects" && r.Method == http.MethodPost:
		f.serveBatch(w, r)
	case path == "/v1/graphql":
		f.serveGraphQL(w, r)
	case strings.HasPrefix(path, "/v1/objects"):
		f.serveObjects(w, r, strings.Split(strings.Trim(strings.TrimPrefix(path, "/v1/objects"), "/"), "/"))
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusTeapot)
	}
}

func (f *fakeWeaviate) serveSchema(w http.ResponseWriter, r *http.Request, class string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := f.classes[class]; !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, models.Class{Class: class})
	case http.MethodPost:
		var c models.Class
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		f.classes[c.Class] = make(map[string]map[string]interface{})
		writeJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		if _, ok := f.classes[class]; !ok {
			notFound(w)
			return
		}
		delete(f.classes, class)
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeWeaviate) serveBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Objects []models.Object `json:"objects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	resp := make([]map[string]interface{}, 0, len(body.Objects))
	for _, obj := range body.Objects {
		props, _ := obj.Properties.(map[string]interface{})
		item := map[string]interface{}{"class": obj.Class, "id": obj.ID, "properties": props}
		content, _ := props[propContent].(string)
		objects, ok := f.classes[obj.Class]
		switch {
		case !ok:
			item["result"] = map[string]interface{}{"errors": map[string]interface{}{
				"error": []map[string]string{{"message": "class " + obj.Class + " does not exist"}},
			}}
		case strings.Contains(content, "reject"):
			item["result"] = map[string]interface{}{"errors": map[string]interface{}{
				"error": []map[string]string{{"message": "invalid object " + props[propDocID].(string)}},
			}}
		default:
			objects[obj.ID.String()] = props
			item["result"] = map[string]interface{}{}
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *fakeWeaviate) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	var query models.GraphQLQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	m := gqlClassPattern.FindStringSubmatch(query.Query)
	if m == nil {
		http.Error(w, "unsupported query "+query.Query, http.StatusUnprocessableEntity)
		return
	}
	kind, class := m[1], m[2]
	objects := f.classes[class]
	if kind == "Aggregate" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{
			"Aggregate": map[string]interface{}{class: []interface{}{
				map[string]interface{}{"meta": map[string]interface{}{"count": len(objects)}},
			}},
		}})
		return
	}

	ids := make([]string, 0, len(objects))
	for id := range objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if lm := gqlLimitPattern.FindStringSubmatch(query.Query); lm != nil {
		if limit, _ := strconv.Atoi(lm[1]); limit < len(ids) {
			ids = ids[:limit]
		}
	}
	hits := make([]interface{}, 0, len(ids))
	for i, id := range ids {
		hit := map[string]interface{}{
			"_additional": map[string]interface{}{"id": id, "distance": 0.1 * float64(i)},
		}
		for k, v := range objects[id] {
			hit[k] = v
		}
		hits = append(hits, hit)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{
		"Get": map[string]interface{}{class: hits},
	}})
}

// serveObjects handles /v1/objects/{class}/{id}.
func (f *fakeWeaviate) serveObjects(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 2 {
		http.Error(w, "expected class namespaced object path", http.StatusTeapot)
		return
	}
	class, id := parts[0], parts[1]
	props, ok := f.classes[class][id]
	switch r.Method {
	case http.MethodGet:
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"class": class, "id": id, "properties": props})
	case http.MethodDelete:
		if !ok {
			notFound(w)
			return
		}
		delete(f.classes[class], id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestWeaviateStoreQueryEmptyCollection(t *testing.T) {
	fake, store := newFakeWeaviate(t)
	hits, err := store.Query(context.Background(), "default_collection", "Stanford University", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}
	if !fake.hasClass("Default_collection") {
		t.Fatal("class was not created on first query")
	}
	stats, err := store.Stats(context.Background(), "default_collection")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 0 {
		t.Fatalf("count = %d, want 0", stats.Count)
	}
}

func TestWeaviateStoreAddQueryAndUpsert(t *testing.T) {
	_, store := newFakeWeaviate(t)
	ctx := context.Background()
	docs := []types.Document{
		{ID: "a", Content: "Here is information about Palo Alto.", Metadata: types.Metadata{"topic": "Palo Alto"}},
		{ID: "b", Content: "Here is information about Silicon Valley.", Metadata: types.Metadata{"topic": "Silicon Valley"}},
	}
	ids, err := store.Add(ctx, "default_collection", docs)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids = %v", ids)
	}

	hits, err := store.Query(ctx, "default_collection", "Palo Alto", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected k=1 hit, got %d", len(hits))
	}

	if _, err := store.Add(ctx, "default_collection", []types.Document{
		{ID: "a", Content: "Palo Alto is a city in California.", Metadata: types.Metadata{"topic": "Palo Alto"}},
	}); err != nil {
		t.Fatalf("Add again: %v", err)
	}
	stats, err := store.Stats(ctx, "default_collection")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 2 {
		t.Fatalf("count = %d after upsert, want 2", stats.Count)
	}
	doc, err := store.Get(ctx, "default_collection", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Content != "Palo Alto is a city in California." || doc.Metadata.Topic() != "Palo Alto" {
		t.Fatalf("document not replaced: %+v", doc)
	}
}

func TestWeaviateStoreRejectedObjects(t *testing.T) {
	_, store := newFakeWeaviate(t)
	ctx := context.Background()
	_, err := store.Add(ctx, "default_collection", []types.Document{
		{ID: "good", Content: "Here is information about Palo Alto."},
		{ID: "bad", Content: "please reject this"},
	})
	var storeErr *types.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if storeErr.Op != "add" || !strings.Contains(err.Error(), "1 object(s) rejected") || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("error = %v", err)
	}
	// Accepted objects stay written.
	stats, err := store.Stats(ctx, "default_collection")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 1 {
		t.Fatalf("count = %d, want 1", stats.Count)
	}
}

func TestWeaviateStoreMissingTargets(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, store *WeaviateStore) error
	}{
		{"delete missing document", func(ctx context.Context, store *WeaviateStore) error {
			return store.DeleteDocument(ctx, "default_collection", "nope")
		}},
		{"delete missing collection", func(ctx context.Context, store *WeaviateStore) error {
			return store.DeleteCollection(ctx, "never_created")
		}},
		{"delete collection twice", func(ctx context.Context, store *WeaviateStore) error {
			if _, err := store.Add(ctx, "notes", []types.Document{{ID: "n1", Content: "A note."}}); err != nil {
				return err
			}
			if err := store.DeleteCollection(ctx, "notes"); err != nil {
				return err
			}
			return store.DeleteCollection(ctx, "notes")
		}},
		{"delete document twice", func(ctx context.Context, store *WeaviateStore) error {
			if _, err := store.Add(ctx, "notes", []types.Document{{ID: "n1", Content: "A note."}}); err != nil {
				return err
			}
			if err := store.DeleteDocument(ctx, "notes", "n1"); err != nil {
				return err
			}
			return store.DeleteDocument(ctx, "notes", "n1")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store := newFakeWeaviate(t)
			if err := tt.run(context.Background(), store); err != nil {
				t.Fatalf("expected success, got %v", err)
			}
		})
	}
}

func TestWeaviateStoreGetMissing(t *testing.T) {
	_, store := newFakeWeaviate(t)
	_, err := store.Get(context.Background(), "default_collection", "nope")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWeaviateStoreCollectionRecreatedAfterDelete(t *testing.T) {
	fake, store := newFakeWeaviate(t)
	ctx := context.Background()
	if _, err := store.Add(ctx, "notes", []types.Document{{ID: "n1", Content: "A note."}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.DeleteCollection(ctx, "notes"); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if fake.hasClass("Notes") {
		t.Fatal("class still present after delete")
	}
	if _, err := store.Add(ctx, "notes", []types.Document{{ID: "n2", Content: "Another note."}}); err != nil {
		t.Fatalf("Add after delete: %v", err)
	}
	stats, err := store.Stats(ctx, "notes")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 1 {
		t.Fatalf("count = %d, want 1", stats.Count)
	}
}
