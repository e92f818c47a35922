package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tieubaoca/context-curator/types"
)

// DocumentStore is a collection-namespaced similarity index.
// Collections are created on first write or query.
type DocumentStore interface {
	// Add writes docs and returns their ids. Documents without an id get a
	// generated one; an id that already exists is replaced.
	Add(ctx context.Context, collection string, docs []types.Document) ([]string, error)

	// Query returns up to k documents ordered by ascending distance to text.
	// A missing or empty collection yields an empty result.
	Query(ctx context.Context, collection, text string, k int) (types.QueryResult, error)

	// Get returns one document. Adapters that serialise metadata return
	// integer values as int64 and other numbers as float64.
	Get(ctx context.Context, collection, id string) (*types.Document, error)

	// Update replaces the document with doc.ID without a window in which it is absent.
	Update(ctx context.Context, collection string, doc types.Document) error

	// DeleteDocument and DeleteCollection treat a missing target as success.
	DeleteDocument(ctx context.Context, collection, id string) error
	DeleteCollection(ctx context.Context, name string) error

	Stats(ctx context.Context, collection string) (types.CollectionStats, error)
	List(ctx context.Context, collection string, limit int) ([]types.Document, error)
}

// NewDocuments zips parallel content/metadata/id slices. metadata and ids may
// be nil; when present they must match contents in length.
func NewDocuments(contents []string, metadata []types.Metadata, ids []string) ([]types.Document, error) {
	if metadata != nil && len(metadata) != len(contents) {
		return nil, fmt.Errorf("got %d metadata entries for %d documents", len(metadata), len(contents))
	}
	if ids != nil && len(ids) != len(contents) {
		return nil, fmt.Errorf("got %d ids for %d documents", len(ids), len(contents))
	}
	docs := make([]types.Document, len(contents))
	for i, content := range contents {
		docs[i].Content = content
		if metadata != nil {
			docs[i].Metadata = metadata[i]
		}
		if ids != nil {
			docs[i].ID = ids[i]
		}
	}
	return docs, nil
}

// prepareDocuments fills in ids and metadata and rejects a batch that
// repeats an id, so a failing batch is rejected before anything is written.
func prepareDocuments(docs []types.Document) ([]types.Document, error) {
	out := make([]types.Document, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		if _, ok := seen[doc.ID]; ok {
			return nil, fmt.Errorf("duplicate id %q in batch", doc.ID)
		}
		seen[doc.ID] = struct{}{}
		if doc.Metadata == nil {
			doc.Metadata = types.Metadata{}
		} else {
			doc.Metadata = doc.Metadata.Clone()
		}
		if err := validateMetadata(doc.Metadata); err != nil {
			return nil, fmt.Errorf("document %q: %w", doc.ID, err)
		}
		out[i] = doc
	}
	return out, nil
}

func validateMetadata(m types.Metadata) error {
	for k, v := range m {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("metadata %q has non-scalar value of type %T", k, v)
		}
	}
	return nil
}
