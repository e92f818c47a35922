package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"github.com/tieubaoca/context-curator/types"
)

type Config struct {
	UploadDir           string              `mapstructure:"upload_dir"`
	Extractor           ExtractorConfig     `mapstructure:"extractor"`
	Search              SearchConfig        `mapstructure:"search"`
	Store               StoreConfig         `mapstructure:"store"`
	WeaviateStoreConfig WeaviateStoreConfig `mapstructure:"weaviate_store_config"`
	Curation            CurationConfig      `mapstructure:"curation"`
	Journal             JournalConfig       `mapstructure:"journal"`
}

type ExtractorConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
	VisionModel  string `mapstructure:"vision_model"`
	APIKey       string `mapstructure:"MISTRAL_API_KEY"`
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"gemini_model"`
}

type SearchConfig struct {
	Provider       string `mapstructure:"provider"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"PERPLEXITY_API_KEY"`
	GoogleAPIKey   string `mapstructure:"GOOGLE_SEARCH_API_KEY"`
	GoogleEngineID string `mapstructure:"google_engine_id"`
	GoogleResults  int64  `mapstructure:"google_results"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type WeaviateStoreConfig struct {
	Host         string       `mapstructure:"host"`
	APIKey       string       `mapstructure:"WEAVIATE_APIKEY"` // Changed to match env var
	Text2Vec     string       `mapstructure:"text2vec"`
	Distance     string       `mapstructure:"distance"`
	ModuleConfig ModuleConfig `mapstructure:"module_config"`
}

type ModuleConfig map[string]interface{}

type CurationConfig struct {
	DefaultCollection    string `mapstructure:"default_collection"`
	ScreenshotCollection string `mapstructure:"screenshot_collection"`
	MaxDocuments         int    `mapstructure:"max_documents"`
	AnswerK              int    `mapstructure:"answer_k"`
	Dedup                string `mapstructure:"dedup"`
	MaxConcurrentFlows   int64  `mapstructure:"max_concurrent_flows"`
	ChunkSize            int    `mapstructure:"chunk_size"`
	ChunkOverlap         int    `mapstructure:"chunk_overlap"`
	OCR                  bool   `mapstructure:"ocr"`
	OCRLanguage          string `mapstructure:"ocr_language"`
	CurateScreenshots    bool   `mapstructure:"curate_screenshots"`
}

type JournalConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URI        string `mapstructure:"MONGODB_URI"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upload_dir", "screenshots")

	v.SetDefault("extractor.provider", "openai")
	v.SetDefault("extractor.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("extractor.model", "ministral-8b-latest")
	v.SetDefault("extractor.vision_model", "pixtral-large-latest")
	v.SetDefault("extractor.gemini_model", "gemini-1.5-flash")

	v.SetDefault("search.provider", "perplexity")
	v.SetDefault("search.base_url", "https://api.perplexity.ai")
	v.SetDefault("search.model", "sonar")
	v.SetDefault("search.google_results", 5)

	v.SetDefault("store.backend", "weaviate")
	v.SetDefault("weaviate_store_config.host", "http://localhost:8080")
	v.SetDefault("weaviate_store_config.text2vec", "text2vec-transformers")
	v.SetDefault("weaviate_store_config.distance", "cosine")

	v.SetDefault("curation.default_collection", "default_collection")
	v.SetDefault("curation.screenshot_collection", "screenshots_collection")
	v.SetDefault("curation.max_documents", types.MaxDocumentsPerFlow)
	v.SetDefault("curation.answer_k", 3)
	v.SetDefault("curation.dedup", "topic")
	v.SetDefault("curation.max_concurrent_flows", 8)
	v.SetDefault("curation.chunk_size", 4000)
	v.SetDefault("curation.chunk_overlap", 200)
	v.SetDefault("curation.ocr", true)
	v.SetDefault("curation.ocr_language", "eng")
	v.SetDefault("curation.curate_screenshots", false)

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.database", "context_curator")
	v.SetDefault("journal.collection", "curation_runs")
}

// LoadConfig reads the yaml file at configPath and overlays environment
// variables. A missing file is not an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Set up Viper to read from config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	}

	// Set up Viper to read from environment variables
	v.AutomaticEnv()

	// Read config file
	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Bind environment variables
	v.BindEnv("extractor.MISTRAL_API_KEY", "MISTRAL_API_KEY")
	v.BindEnv("extractor.GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("search.PERPLEXITY_API_KEY", "PERPLEXITY_API_KEY")
	v.BindEnv("search.GOOGLE_SEARCH_API_KEY", "GOOGLE_SEARCH_API_KEY")
	v.BindEnv("weaviate_store_config.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")
	v.BindEnv("journal.MONGODB_URI", "MONGODB_URI")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the curator cannot run with.
func (c *Config) Validate() error {
	switch c.Extractor.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown extractor provider %q", c.Extractor.Provider)
	}
	switch c.Search.Provider {
	case "perplexity", "google":
	default:
		return fmt.Errorf("unknown search provider %q", c.Search.Provider)
	}
	switch c.Store.Backend {
	case "weaviate", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Curation.Dedup {
	case "topic", "append":
	default:
		return fmt.Errorf("unknown dedup policy %q", c.Curation.Dedup)
	}
	if c.Curation.MaxDocuments < 1 || c.Curation.MaxDocuments > types.MaxDocumentsPerFlow {
		return fmt.Errorf("curation.max_documents must be between 1 and %d, got %d", types.MaxDocumentsPerFlow, c.Curation.MaxDocuments)
	}
	if c.Curation.AnswerK < 1 {
		return fmt.Errorf("curation.answer_k must be at least 1, got %d", c.Curation.AnswerK)
	}
	if c.Curation.DefaultCollection == "" {
		return errors.New("curation.default_collection is required")
	}
	return nil
}
