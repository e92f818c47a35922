package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tieubaoca/context-curator/types"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// MemoryStore is an in-process DocumentStore using bag-of-words cosine
// distance. It is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	entries []memoryEntry
	index   map[string]int
}

type memoryEntry struct {
	doc    types.Document
	vector map[string]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// collection returns the named collection, creating it if needed.
// Caller must hold the write lock.
func (s *MemoryStore) collection(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{index: make(map[string]int)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) ensure(name string) {
	s.mu.RLock()
	_, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return
	}
	s.mu.Lock()
	s.collection(name)
	s.mu.Unlock()
}

func (c *memoryCollection) put(doc types.Document) {
	entry := memoryEntry{doc: doc, vector: vectorize(doc.Content)}
	if i, ok := c.index[doc.ID]; ok {
		c.entries[i] = entry
		return
	}
	c.index[doc.ID] = len(c.entries)
	c.entries = append(c.entries, entry)
}

func (s *MemoryStore) Add(ctx context.Context, collection string, docs []types.Document) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.StoreError{Op: "add", Collection: collection, Err: err}
	}
	prepared, err := prepareDocuments(docs)
	if err != nil {
		return nil, &types.StoreError{Op: "add", Collection: collection, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	ids := make([]string, 0, len(prepared))
	for _, doc := range prepared {
		c.put(doc)
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection, text string, k int) (types.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.StoreError{Op: "query", Collection: collection, Err: err}
	}
	if k <= 0 {
		return nil, &types.StoreError{Op: "query", Collection: collection, Err: fmt.Errorf("k must be positive, got %d", k)}
	}
	s.ensure(collection)
	query := vectorize(text)

	s.mu.RLock()
	var entries []memoryEntry
	if c, ok := s.collections[collection]; ok {
		entries = c.entries
	}
	hits := make(types.QueryResult, 0, len(entries))
	for _, entry := range entries {
		hits = append(hits, types.QueryHit{
			Document: copyDocument(entry.doc),
			Distance: cosineDistance(query, entry.vector),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.StoreError{Op: "get", Collection: collection, Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return nil, &types.StoreError{Op: "get", Collection: collection, Err: types.ErrNotFound}
	}
	i, ok := c.index[id]
	if !ok {
		return nil, &types.StoreError{Op: "get", Collection: collection, Err: types.ErrNotFound}
	}
	doc := copyDocument(c.entries[i].doc)
	return &doc, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection string, doc types.Document) error {
	if err := ctx.Err(); err != nil {
		return &types.StoreError{Op: "update", Collection: collection, Err: err}
	}
	if doc.ID == "" {
		return &types.StoreError{Op: "update", Collection: collection, Err: errors.New("document id is required")}
	}
	prepared, err := prepareDocuments([]types.Document{doc})
	if err != nil {
		return &types.StoreError{Op: "update", Collection: collection, Err: err}
	}
	s.mu.Lock()
	s.collection(collection).put(prepared[0])
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return &types.StoreError{Op: "delete", Collection: collection, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	i, ok := c.index[id]
	if !ok {
		return nil
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.entries); j++ {
		c.index[c.entries[j].doc.ID] = j
	}
	return nil
}

func (s *MemoryStore) DeleteCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &types.StoreError{Op: "delete collection", Collection: name, Err: err}
	}
	s.mu.Lock()
	delete(s.collections, name)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context, collection string) (types.CollectionStats, error) {
	if err := ctx.Err(); err != nil {
		return types.CollectionStats{}, &types.StoreError{Op: "stats", Collection: collection, Err: err}
	}
	s.ensure(collection)
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := types.CollectionStats{Name: collection}
	if c, ok := s.collections[collection]; ok {
		stats.Count = len(c.entries)
	}
	return stats, nil
}

func (s *MemoryStore) List(ctx context.Context, collection string, limit int) ([]types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.StoreError{Op: "list", Collection: collection, Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return []types.Document{}, nil
	}
	n := len(c.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	docs := make([]types.Document, 0, n)
	for _, entry := range c.entries[:n] {
		docs = append(docs, copyDocument(entry.doc))
	}
	return docs, nil
}

func copyDocument(doc types.Document) types.Document {
	doc.Metadata = doc.Metadata.Clone()
	return doc
}

// vectorize returns an L2-normalised term frequency vector.
func vectorize(text string) map[string]float64 {
	vec := make(map[string]float64)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		vec[tok]++
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for k := range vec {
			vec[k] /= norm
		}
	}
	return vec
}

// cosineDistance is 1 - cosine similarity, clamped to [0, 1].
func cosineDistance(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	dot := 0.0
	for k, v := range a {
		dot += v * b[k]
	}
	d := 1 - dot
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"here", "information", "tell", "me", "what", "who",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
