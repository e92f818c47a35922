package service

import (
	"context"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tieubaoca/context-curator/types"
)

// PerplexityService is the search model. Perplexity speaks the OpenAI chat
// protocol, so the same client is reused with its base URL.
type PerplexityService struct {
	client *openai.Client
	model  string
}

func NewPerplexityService(baseURL, apiKey, model string) *PerplexityService {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &PerplexityService{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (s *PerplexityService) Search(ctx context.Context, topic string, known []string) (*types.SearchResponse, error) {
	format, err := jsonSchemaFormat("search_response", types.SearchResponse{})
	if err != nil {
		return nil, &types.SearchError{Op: "request", Err: err}
	}
	raw, err := complete(ctx, s.client, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: searchSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: searchPrompt(topic, known)},
		},
		ResponseFormat: format,
	})
	if err != nil {
		return nil, &types.SearchError{Op: "request", Err: err}
	}
	resp, err := parseSearchResponse(raw)
	if err != nil {
		log.Printf("Error decoding search answer for %q: %v", topic, err)
		return nil, err
	}
	return resp, nil
}
