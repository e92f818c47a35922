package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tieubaoca/context-curator/types"
	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// SearchResult represents a single search result from Google Custom Search API
type SearchResult struct {
	Title   string `json:"title"`   // The title of the search result
	Link    string `json:"link"`    // The URL of the search result
	Snippet string `json:"snippet"` // A brief excerpt from the search result
}

// SearchService handles Google Custom Search operations
type SearchService struct {
	apiKey   string // Google API key for authentication
	engineID string // Custom Search Engine ID
	results  int64
	opts     []option.ClientOption
}

// NewSearchService creates a new instance of SearchService
// Parameters:
//   - apiKey: Google API key for authentication
//   - engineID: Custom Search Engine ID
//   - results: number of results per query, 1 to 10
func NewSearchService(apiKey, engineID string, results int64, opts ...option.ClientOption) *SearchService {
	if results <= 0 || results > 10 {
		results = 5
	}
	return &SearchService{
		apiKey:   apiKey,
		engineID: engineID,
		results:  results,
		opts:     opts,
	}
}

// Search performs a Google Custom Search and returns structured results
func (s *SearchService) Search(ctx context.Context, query string) ([]SearchResult, error) {
	opts := append([]option.ClientOption{}, s.opts...)
	if s.apiKey != "" {
		opts = append(opts, option.WithAPIKey(s.apiKey))
	}
	searchService, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}

	search := searchService.Cse.List()
	search.Q(query)
	search.Cx(s.engineID)
	search.Num(s.results)

	result, err := search.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}

	searchResults := make([]SearchResult, 0, len(result.Items))
	for _, item := range result.Items {
		searchResults = append(searchResults, SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return searchResults, nil
}

// GroundedSearchService answers topic searches from Google results. The raw
// snippets are composed into a {thoughts, answer} reply by a chat model.
type GroundedSearchService struct {
	web    *SearchService
	client *openai.Client
	model  string
}

func NewGroundedSearchService(web *SearchService, baseURL, apiKey, model string) *GroundedSearchService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &GroundedSearchService{
		web:    web,
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (s *GroundedSearchService) Search(ctx context.Context, topic string, known []string) (*types.SearchResponse, error) {
	results, err := s.web.Search(ctx, topic)
	if err != nil {
		return nil, &types.SearchError{Op: "web search", Err: err}
	}
	if len(results) == 0 {
		return nil, &types.SearchError{Op: "web search", Err: types.ErrEmptyOutput}
	}
	format, err := jsonSchemaFormat("search_response", types.SearchResponse{})
	if err != nil {
		return nil, &types.SearchError{Op: "request", Err: err}
	}
	raw, err := complete(ctx, s.client, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: searchSystemPrompt + "\nOnly use facts found in the provided search results."},
			{Role: openai.ChatMessageRoleUser, Content: groundedPrompt(topic, known, results)},
		},
		Temperature:    deterministicTemperature,
		ResponseFormat: format,
	})
	if err != nil {
		return nil, &types.SearchError{Op: "request", Err: err}
	}
	return parseSearchResponse(raw)
}

func groundedPrompt(topic string, known []string, results []SearchResult) string {
	var b strings.Builder
	b.WriteString(searchPrompt(topic, known))
	b.WriteString("\n\n<search_results>\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	b.WriteString("</search_results>")
	return b.String()
}
