package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tieubaoca/context-curator/database"
	"github.com/tieubaoca/context-curator/types"
	"golang.org/x/sync/semaphore"
)

// curatedNamespace seeds the ids of documents written under the topic dedup policy.
var curatedNamespace = uuid.MustParse("2b0f6f0e-3c1d-5a8e-9d4b-7c6a5e4f3b21")

const (
	sourceContext   = "context"
	sourceExpansion = "expansion"
)

// Journal records completed flows.
type Journal interface {
	Record(ctx context.Context, run types.CurationRun) error
}

type CuratorConfig struct {
	Collection         string
	MaxDocuments       int
	AnswerK            int
	Dedup              string
	MaxConcurrentFlows int64
}

// CuratorService runs the passive and active curation flows. Each flow is a
// fixed sequence of extractor, search and store calls; nothing is written
// until every model call has succeeded.
type CuratorService struct {
	extractor TopicExtractor
	searcher  TopicSearcher
	store     database.DocumentStore
	journal   Journal
	config    CuratorConfig
	flows     *semaphore.Weighted
	now       func() time.Time
}

// NewCuratorService builds a curator. journal may be nil.
func NewCuratorService(
	extractor TopicExtractor,
	searcher TopicSearcher,
	store database.DocumentStore,
	journal Journal,
	config CuratorConfig,
) *CuratorService {
	if config.Collection == "" {
		config.Collection = "default_collection"
	}
	if config.MaxDocuments <= 0 || config.MaxDocuments > types.MaxDocumentsPerFlow {
		config.MaxDocuments = types.MaxDocumentsPerFlow
	}
	if config.AnswerK <= 0 {
		config.AnswerK = 3
	}
	if config.Dedup == "" {
		config.Dedup = types.DedupTopic
	}
	if config.MaxConcurrentFlows <= 0 {
		config.MaxConcurrentFlows = 8
	}
	return &CuratorService{
		extractor: extractor,
		searcher:  searcher,
		store:     store,
		journal:   journal,
		config:    config,
		flows:     semaphore.NewWeighted(config.MaxConcurrentFlows),
		now:       time.Now,
	}
}

func (s *CuratorService) Collection() string { return s.config.Collection }

func (s *CuratorService) acquire(ctx context.Context) (func(), error) {
	if err := s.flows.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { s.flows.Release(1) }, nil
}

// Ingest runs the passive flow on raw context and returns the ids of the
// documents written. The first document always holds context verbatim under
// the overall topic.
func (s *CuratorService) Ingest(ctx context.Context, input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, types.ErrEmptyContext
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	topic, err := s.extractor.ExtractTopic(ctx, input)
	if err != nil {
		return nil, err
	}
	log.Printf("Passive flow: overall topic %q", topic)

	search, err := s.searcher.Search(ctx, topic, nil)
	if err != nil {
		return nil, err
	}
	topics, err := s.extractor.ExtractTopics(ctx, search.Answer)
	if err != nil {
		return nil, err
	}
	log.Printf("Passive flow: search on %q yielded %d topic(s)", topic, len(topics))

	// The first extracted slot is taken by the original context.
	docs := []types.Document{s.contextDocument(topic, input)}
	if len(topics) > 1 {
		docs = append(docs, s.expansionDocuments(topics[1:], []string{topic}, types.FlowPassive)...)
	}
	docs = capDocuments(docs, s.config.MaxDocuments)

	ids, err := s.store.Add(ctx, s.config.Collection, docs)
	if err != nil {
		return nil, err
	}
	log.Printf("Passive flow: wrote %d document(s) to %s", len(ids), s.config.Collection)
	s.record(ctx, types.FlowPassive, input, topic, ids)
	return ids, nil
}

// AnswerContext runs the active flow. It returns the documents already known
// about the question's topic, then enriches the store for later questions.
// If enrichment fails no documents are returned.
func (s *CuratorService) AnswerContext(ctx context.Context, question string) ([]types.Document, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, types.ErrEmptyContext
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	topic, err := s.extractor.ExtractTopic(ctx, question)
	if err != nil {
		return nil, err
	}
	log.Printf("Active flow: question topic %q", topic)

	recalled, err := s.recall(ctx, topic)
	if err != nil {
		return nil, err
	}
	ids, err := s.enrich(ctx, topic, recalled.Topics())
	if err != nil {
		return nil, err
	}
	s.record(ctx, types.FlowActive, question, topic, ids)
	return recalled.Documents(), nil
}

// Recall returns the stored documents closest to topic.
func (s *CuratorService) Recall(ctx context.Context, topic string) (types.QueryResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, types.ErrEmptyContext
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.recall(ctx, topic)
}

// Enrich expands topic while steering away from the known topic names and
// stores the result. It returns the ids written.
func (s *CuratorService) Enrich(ctx context.Context, topic string, known []string) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, types.ErrEmptyContext
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.enrich(ctx, topic, known)
}

func (s *CuratorService) recall(ctx context.Context, topic string) (types.QueryResult, error) {
	result, err := s.store.Query(ctx, s.config.Collection, topic, s.config.AnswerK)
	if err != nil {
		return nil, err
	}
	log.Printf("Active flow: recalled %d document(s) for %q", len(result), topic)
	return result, nil
}

func (s *CuratorService) enrich(ctx context.Context, topic string, known []string) ([]string, error) {
	search, err := s.searcher.Search(ctx, topic, known)
	if err != nil {
		return nil, err
	}
	topics, err := s.extractor.ExtractTopics(ctx, search.Answer)
	if err != nil {
		return nil, err
	}
	docs := capDocuments(s.expansionDocuments(topics, nil, types.FlowActive), s.config.MaxDocuments)
	ids, err := s.store.Add(ctx, s.config.Collection, docs)
	if err != nil {
		return nil, err
	}
	log.Printf("Active flow: wrote %d document(s) about topics adjacent to %q", len(ids), topic)
	return ids, nil
}

// contextDocument keeps the original context under the overall topic.
func (s *CuratorService) contextDocument(topic, input string) types.Document {
	doc := types.Document{
		Content:  topicContent(topic, input),
		Metadata: s.metadata(topic, types.FlowPassive, sourceContext),
	}
	if s.config.Dedup == types.DedupTopic {
		doc.ID = s.documentID(sourceContext, normalizeTopic(topic), input)
	}
	return doc
}

// expansionDocuments turns topics into documents, skipping names that repeat
// an earlier topic or one of exclude.
func (s *CuratorService) expansionDocuments(topics []types.Topic, exclude []string, flow string) []types.Document {
	seen := make(map[string]struct{}, len(topics)+len(exclude))
	for _, name := range exclude {
		seen[normalizeTopic(name)] = struct{}{}
	}
	docs := make([]types.Document, 0, len(topics))
	for _, t := range topics {
		key := normalizeTopic(t.Name)
		if key == "" || strings.TrimSpace(t.Information) == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		doc := types.Document{
			Content:  topicContent(t.Name, t.Information),
			Metadata: s.metadata(t.Name, flow, sourceExpansion),
		}
		if s.config.Dedup == types.DedupTopic {
			doc.ID = s.documentID(sourceExpansion, key)
		}
		docs = append(docs, doc)
	}
	return docs
}

func (s *CuratorService) metadata(topic, flow, source string) types.Metadata {
	return types.Metadata{
		types.MetadataTopic:     topic,
		types.MetadataFlow:      flow,
		types.MetadataSource:    source,
		types.MetadataCreatedAt: s.now().UTC().Format(time.RFC3339),
	}
}

func (s *CuratorService) documentID(parts ...string) string {
	name := s.config.Collection + "\x00" + strings.Join(parts, "\x00")
	return uuid.NewSHA1(curatedNamespace, []byte(name)).String()
}

func (s *CuratorService) record(ctx context.Context, flow, input, topic string, ids []string) {
	if s.journal == nil {
		return
	}
	run := types.CurationRun{
		ID:          uuid.NewString(),
		Flow:        flow,
		Input:       input,
		Topic:       topic,
		Collection:  s.config.Collection,
		DocumentIDs: ids,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.journal.Record(ctx, run); err != nil {
		log.Printf("Error recording %s run: %v", flow, err)
	}
}

func topicContent(name, information string) string {
	return fmt.Sprintf("Here is information about %s.\n%s", name, information)
}

func normalizeTopic(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func capDocuments(docs []types.Document, limit int) []types.Document {
	if len(docs) > limit {
		return docs[:limit]
	}
	return docs
}
