package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tieubaoca/context-curator/config"
	"github.com/tieubaoca/context-curator/database"
	"github.com/tieubaoca/context-curator/repository"
	"github.com/tieubaoca/context-curator/service"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	c.Store.Backend = "memory"
	return c
}

func TestNewAppWiresConfiguredCollaborators(t *testing.T) {
	c := loadTestConfig(t)
	a, err := newApp(context.Background(), c)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if _, ok := a.store.(*database.MemoryStore); !ok {
		t.Fatalf("store = %T", a.store)
	}
	if _, ok := a.extractor.(*service.OpenAIService); !ok {
		t.Fatalf("extractor = %T", a.extractor)
	}
	if _, ok := a.searcher.(*service.PerplexityService); !ok {
		t.Fatalf("searcher = %T", a.searcher)
	}
	if _, ok := a.journal.(repository.NopJournal); !ok {
		t.Fatalf("journal = %T", a.journal)
	}
	if got := a.curator.Collection(); got != "default_collection" {
		t.Fatalf("collection = %q", got)
	}
	if got := collectionArg(a, nil); got != "default_collection" {
		t.Fatalf("collectionArg = %q", got)
	}
	if got := collectionArg(a, []string{"other"}); got != "other" {
		t.Fatalf("collectionArg = %q", got)
	}
}

func TestNewAppGoogleSearch(t *testing.T) {
	c := loadTestConfig(t)
	c.Search.Provider = "google"
	a, err := newApp(context.Background(), c)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()
	if _, ok := a.searcher.(*service.GroundedSearchService); !ok {
		t.Fatalf("searcher = %T", a.searcher)
	}
}

func TestNewAppGeminiNeedsKey(t *testing.T) {
	c := loadTestConfig(t)
	c.Extractor.Provider = "gemini"
	c.Extractor.GeminiAPIKey = ""
	if _, err := newApp(context.Background(), c); err == nil {
		t.Fatal("expected error without a Gemini API key")
	}
}

func TestNewAppJournalNeedsURI(t *testing.T) {
	c := loadTestConfig(t)
	c.Journal.Enabled = true
	c.Journal.URI = ""
	if _, err := newApp(context.Background(), c); err == nil {
		t.Fatal("expected error without a MongoDB URI")
	}
}
