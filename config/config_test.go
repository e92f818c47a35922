package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Curation.DefaultCollection != "default_collection" {
		t.Errorf("default collection = %q", cfg.Curation.DefaultCollection)
	}
	if cfg.Curation.MaxDocuments != 4 {
		t.Errorf("max documents = %d, want 4", cfg.Curation.MaxDocuments)
	}
	if cfg.Curation.AnswerK != 3 {
		t.Errorf("answer k = %d, want 3", cfg.Curation.AnswerK)
	}
	if cfg.Search.Model != "sonar" {
		t.Errorf("search model = %q, want sonar", cfg.Search.Model)
	}
	if cfg.Store.Backend != "weaviate" {
		t.Errorf("store backend = %q, want weaviate", cfg.Store.Backend)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: memory
curation:
  default_collection: notes
  dedup: append
  max_documents: 2
`)
	t.Setenv("PERPLEXITY_API_KEY", "pplx-test")
	t.Setenv("MISTRAL_API_KEY", "mistral-test")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("store backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Curation.DefaultCollection != "notes" {
		t.Errorf("default collection = %q, want notes", cfg.Curation.DefaultCollection)
	}
	if cfg.Curation.Dedup != "append" {
		t.Errorf("dedup = %q, want append", cfg.Curation.Dedup)
	}
	if cfg.Curation.MaxDocuments != 2 {
		t.Errorf("max documents = %d, want 2", cfg.Curation.MaxDocuments)
	}
	if cfg.Curation.AnswerK != 3 {
		t.Errorf("answer k = %d, want default 3", cfg.Curation.AnswerK)
	}
	if cfg.Search.APIKey != "pplx-test" {
		t.Errorf("search api key = %q", cfg.Search.APIKey)
	}
	if cfg.Extractor.APIKey != "mistral-test" {
		t.Errorf("extractor api key = %q", cfg.Extractor.APIKey)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"dedup", "curation:\n  dedup: sometimes\n", "dedup"},
		{"backend", "store:\n  backend: chroma\n", "store backend"},
		{"max documents", "curation:\n  max_documents: 0\n", "max_documents"},
		{"max documents above cap", "curation:\n  max_documents: 5\n", "max_documents"},
		{"search provider", "search:\n  provider: bing\n", "search provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
