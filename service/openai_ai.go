package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/tieubaoca/context-curator/types"
)

// deterministicTemperature is sent instead of 0, which the client drops as an
// empty field and the server would replace with its default.
const deterministicTemperature = math.SmallestNonzeroFloat32

// OpenAIService talks to any OpenAI-compatible chat endpoint. It extracts
// topics, summarises sources and describes screenshots.
type OpenAIService struct {
	client      *openai.Client
	model       string
	visionModel string
}

func NewOpenAIService(baseURL string, apiKey, model, visionModel string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIService{
		client:      client,
		model:       model,
		visionModel: visionModel,
	}
}

// jsonSchemaFormat asks the model to answer with an object matching v.
func jsonSchemaFormat(name string, v any) (*openai.ChatCompletionResponseFormat, error) {
	schema, err := jsonschema.GenerateSchemaForType(v)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", name, err)
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: schema,
			Strict: true,
		},
	}, nil
}

// complete runs one chat completion and returns the first choice's text.
func complete(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", types.ErrEmptyOutput
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", types.ErrEmptyOutput
	}
	return content, nil
}

func (s *OpenAIService) ExtractTopic(ctx context.Context, text string) (string, error) {
	format, err := jsonSchemaFormat("topic_response", topicResponse{})
	if err != nil {
		return "", &types.ExtractionError{Op: "extract topic", Err: err}
	}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: topicSystemPrompt},
	}
	for _, ex := range topicExamples {
		answer, _ := json.Marshal(topicResponse{Topic: ex[1]})
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: ex[0]},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: string(answer)},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})

	raw, err := complete(ctx, s.client, openai.ChatCompletionRequest{
		Model:          s.model,
		Messages:       messages,
		Temperature:    deterministicTemperature,
		ResponseFormat: format,
	})
	if err != nil {
		return "", &types.ExtractionError{Op: "extract topic", Err: err}
	}
	return parseTopic(raw)
}

func (s *OpenAIService) ExtractTopics(ctx context.Context, text string) ([]types.Topic, error) {
	format, err := jsonSchemaFormat("topics_response", topicsResponse{})
	if err != nil {
		return nil, &types.ExtractionError{Op: "extract topics", Err: err}
	}
	raw, err := complete(ctx, s.client, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: topicsSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature:    deterministicTemperature,
		ResponseFormat: format,
	})
	if err != nil {
		return nil, &types.ExtractionError{Op: "extract topics", Err: err}
	}
	return parseTopics(raw)
}

func (s *OpenAIService) Summarize(ctx context.Context, sources []string) (string, error) {
	if len(sources) == 0 {
		return "", &types.ExtractionError{Op: "summarize", Err: types.ErrEmptyContext}
	}
	summary, err := complete(ctx, s.client, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: summaryPrompt(sources)},
		},
		Temperature: deterministicTemperature,
	})
	if err != nil {
		return "", &types.ExtractionError{Op: "summarize", Err: err}
	}
	return summary, nil
}

func (s *OpenAIService) DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", &types.ExtractionError{Op: "describe image", Err: types.ErrEmptyContext}
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	log.Printf("Describing %d byte image with %s", len(image), s.visionModel)
	description, err := complete(ctx, s.client, openai.ChatCompletionRequest{
		Model: s.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: describeImagePrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
	})
	if err != nil {
		return "", &types.ExtractionError{Op: "describe image", Err: err}
	}
	return description, nil
}
