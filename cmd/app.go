package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/context-curator/config"
	"github.com/tieubaoca/context-curator/database"
	"github.com/tieubaoca/context-curator/repository"
	"github.com/tieubaoca/context-curator/service"
	"github.com/tieubaoca/context-curator/types"
)

// extractorService is what both extractor providers implement.
type extractorService interface {
	service.TopicExtractor
	service.Summarizer
	service.ImageDescriber
}

// app holds the collaborators built once per process and shared by every flow.
type app struct {
	config    *config.Config
	store     database.DocumentStore
	extractor extractorService
	searcher  service.TopicSearcher
	journal   repository.JournalRepo
	curator   *service.CuratorService
	closers   []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{config: cfg}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	switch cfg.Extractor.Provider {
	case "gemini":
		gemini, err := service.NewGeminiService(ctx, cfg.Extractor.GeminiAPIKey, cfg.Extractor.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini extractor: %w", err)
		}
		a.extractor = gemini
		a.closers = append(a.closers, func() { gemini.Close() })
	default:
		a.extractor = service.NewOpenAIService(cfg.Extractor.BaseURL, cfg.Extractor.APIKey, cfg.Extractor.Model, cfg.Extractor.VisionModel)
	}

	switch cfg.Search.Provider {
	case "google":
		web := service.NewSearchService(cfg.Search.GoogleAPIKey, cfg.Search.GoogleEngineID, cfg.Search.GoogleResults)
		a.searcher = service.NewGroundedSearchService(web, cfg.Extractor.BaseURL, cfg.Extractor.APIKey, cfg.Extractor.Model)
	default:
		a.searcher = service.NewPerplexityService(cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.Model)
	}

	a.journal = repository.NopJournal{}
	if cfg.Journal.Enabled {
		mongoClient, err := database.NewMongoClient(ctx, cfg.Journal.URI)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			}
		})
		collection := mongoClient.Database(cfg.Journal.Database).Collection(cfg.Journal.Collection)
		a.journal = repository.NewJournalRepo(collection)
	}

	a.curator = service.NewCuratorService(a.extractor, a.searcher, a.store, a.journal, service.CuratorConfig{
		Collection:         cfg.Curation.DefaultCollection,
		MaxDocuments:       cfg.Curation.MaxDocuments,
		AnswerK:            cfg.Curation.AnswerK,
		Dedup:              cfg.Curation.Dedup,
		MaxConcurrentFlows: cfg.Curation.MaxConcurrentFlows,
	})
	return a, nil
}

func newStore(cfg *config.Config) (database.DocumentStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		log.Println("Using in-memory document store; documents are lost on exit")
		return database.NewMemoryStore(), nil
	default:
		store, err := database.NewWeaviateStore(cfg.WeaviateStoreConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Weaviate database: %w", err)
		}
		return store, nil
	}
}

func (a *app) screenshots() *service.ScreenshotService {
	var ocr service.TextRecognizer
	if a.config.Curation.OCR {
		ocr = service.TesseractOCR{Language: a.config.Curation.OCRLanguage}
	}
	return service.NewScreenshotService(a.extractor, ocr, a.store, a.curator, a.journal, service.ScreenshotConfig{
		UploadDir:  a.config.UploadDir,
		Collection: a.config.Curation.ScreenshotCollection,
		Curate:     a.config.Curation.CurateScreenshots,
	})
}

func (a *app) files(parallel int) *service.FileService {
	chunker := service.NewChunkService(types.ChunkConfig{
		MaxChunkSize: a.config.Curation.ChunkSize,
		OverlapSize:  a.config.Curation.ChunkOverlap,
	})
	return service.NewFileService(chunker, a.curator, parallel)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// mustApp builds the app for a command, honouring --collection.
func mustApp(ctx context.Context, cmd *cobra.Command) *app {
	cfg.Curation.DefaultCollection = collectionFlag(cmd, cfg.Curation.DefaultCollection)
	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialise: %v", err)
	}
	return a
}
