package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/tieubaoca/context-curator/types"
	"google.golang.org/api/option"
)

// GeminiService extracts topics with Gemini's JSON response mode.
// Each task gets its own model handle so settings are never shared.
type GeminiService struct {
	client      *genai.Client
	topicModel  *genai.GenerativeModel
	topicsModel *genai.GenerativeModel
	textModel   *genai.GenerativeModel
}

func NewGeminiService(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*GeminiService, error) {
	if apiKey == "" {
		return nil, errors.New("no API key provided")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	topicModel := client.GenerativeModel(modelName)
	topicModel.SetTemperature(0)
	topicModel.SystemInstruction = genai.NewUserContent(genai.Text(topicSystemPrompt))
	topicModel.ResponseMIMEType = "application/json"
	topicModel.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"topic": {Type: genai.TypeString},
		},
		Required: []string{"topic"},
	}

	topicsModel := client.GenerativeModel(modelName)
	topicsModel.SetTemperature(0)
	topicsModel.SystemInstruction = genai.NewUserContent(genai.Text(topicsSystemPrompt))
	topicsModel.ResponseMIMEType = "application/json"
	topicsModel.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"topics": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":              {Type: genai.TypeString},
						"topic_information": {Type: genai.TypeString},
					},
					Required: []string{"name", "topic_information"},
				},
			},
		},
		Required: []string{"topics"},
	}

	textModel := client.GenerativeModel(modelName)
	textModel.SetTemperature(0)

	return &GeminiService{
		client:      client,
		topicModel:  topicModel,
		topicsModel: topicsModel,
		textModel:   textModel,
	}, nil
}

func (s *GeminiService) Close() error {
	return s.client.Close()
}

// responseText joins the text parts of every candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func (s *GeminiService) generate(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	text := responseText(resp)
	if text == "" {
		return "", types.ErrEmptyOutput
	}
	return text, nil
}

func (s *GeminiService) ExtractTopic(ctx context.Context, text string) (string, error) {
	chat := s.topicModel.StartChat()
	for _, ex := range topicExamples {
		answer, _ := json.Marshal(topicResponse{Topic: ex[1]})
		chat.History = append(chat.History,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(ex[0])}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(answer)}},
		)
	}
	resp, err := chat.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return "", &types.ExtractionError{Op: "extract topic", Err: err}
	}
	raw := responseText(resp)
	if raw == "" {
		return "", &types.ExtractionError{Op: "extract topic", Err: types.ErrEmptyOutput}
	}
	return parseTopic(raw)
}

func (s *GeminiService) ExtractTopics(ctx context.Context, text string) ([]types.Topic, error) {
	raw, err := s.generate(ctx, s.topicsModel, genai.Text(text))
	if err != nil {
		return nil, &types.ExtractionError{Op: "extract topics", Err: err}
	}
	return parseTopics(raw)
}

func (s *GeminiService) Summarize(ctx context.Context, sources []string) (string, error) {
	if len(sources) == 0 {
		return "", &types.ExtractionError{Op: "summarize", Err: types.ErrEmptyContext}
	}
	summary, err := s.generate(ctx, s.textModel, genai.Text(summarySystemPrompt+"\n\n"+summaryPrompt(sources)))
	if err != nil {
		return "", &types.ExtractionError{Op: "summarize", Err: err}
	}
	return summary, nil
}

func (s *GeminiService) DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", &types.ExtractionError{Op: "describe image", Err: types.ErrEmptyContext}
	}
	format := strings.TrimPrefix(mimeType, "image/")
	if format == "" || format == mimeType {
		format = "png"
	}
	description, err := s.generate(ctx, s.textModel, genai.Text(describeImagePrompt), genai.ImageData(format, image))
	if err != nil {
		return "", &types.ExtractionError{Op: "describe image", Err: err}
	}
	return description, nil
}
