package types

// Metadata holds scalar attributes attached to a stored document.
// Values are strings, numbers or booleans.
type Metadata map[string]any

const (
	MetadataTopic     = "topic"
	MetadataSource    = "source"
	MetadataFlow      = "flow"
	MetadataCreatedAt = "created_at"
)

// Topic returns the topic name the document was curated under, if any.
func (m Metadata) Topic() string {
	if m == nil {
		return ""
	}
	topic, _ := m[MetadataTopic].(string)
	return topic
}

// Clone returns a shallow copy that can be mutated independently.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Document represents a knowledge base document
type Document struct {
	ID       string   `bson:"_id" json:"id"`
	Content  string   `bson:"content" json:"content"`
	Metadata Metadata `bson:"metadata" json:"metadata"`
}

// QueryHit is one document returned by a similarity query.
type QueryHit struct {
	Document Document `json:"document"`
	Distance float64  `json:"distance"`
}

// QueryResult is ordered by ascending distance, most similar first.
type QueryResult []QueryHit

// Documents drops the distances.
func (r QueryResult) Documents() []Document {
	docs := make([]Document, 0, len(r))
	for _, hit := range r {
		docs = append(docs, hit.Document)
	}
	return docs
}

// Topics returns the distinct topic names carried by the hits, in order.
func (r QueryResult) Topics() []string {
	seen := make(map[string]struct{}, len(r))
	topics := make([]string, 0, len(r))
	for _, hit := range r {
		topic := hit.Document.Metadata.Topic()
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	return topics
}

type CollectionStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DocumentChunk is a piece of a longer text file handed to the passive flow.
type DocumentChunk struct {
	Content string
	Index   int
	Source  string
}

// ChunkConfig contains configuration options for text chunking
type ChunkConfig struct {
	MaxChunkSize int // Maximum size for text chunks
	OverlapSize  int // Size of overlap between chunks
}
