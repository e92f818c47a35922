package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tieubaoca/context-curator/types"
)

// TopicExtractor turns free text into topics. Implementations run the model
// deterministically and fail with *types.ExtractionError on unusable output.
type TopicExtractor interface {
	// ExtractTopic returns the single overall topic name of text.
	ExtractTopic(ctx context.Context, text string) (string, error)
	// ExtractTopics splits text into named topics with their information.
	ExtractTopics(ctx context.Context, text string) ([]types.Topic, error)
}

// TopicSearcher expands a topic with web-backed knowledge. known lists topic
// names the caller already holds so the answer can favour new ground.
// Implementations fail with *types.SearchError.
type TopicSearcher interface {
	Search(ctx context.Context, topic string, known []string) (*types.SearchResponse, error)
}

// Summarizer synthesises several sources into one answer.
type Summarizer interface {
	Summarize(ctx context.Context, sources []string) (string, error)
}

// ImageDescriber describes a screenshot in prose.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error)
}

const (
	topicSystemPrompt  = "Return the topic of the user's statement. This should be a term or phrase, not a complete sentence."
	topicsSystemPrompt = "Return the key topics of the user's statement. Topic names should be as descriptive as possible and interpretable even when taken out of context. " +
		"For example, text about Shakespeare that talks about his birth should have topic name \"Shakespeare's Birth\" instead of just \"Birth\". " +
		"Topic information should be the information pertaining to each topic."
	searchSystemPrompt = "Provide information about topics adjacent to the user's input. Output a JSON object with fields `thoughts`, and `answer`. \n" +
		"`thoughts` should be a deliberation of what the user may want to know.\n" +
		"`answer` should be an answer to the user's question, providing extensive information about adjacent topics in a bulleted list format."
	summarySystemPrompt = `<system_prompt>
You are a highly capable Large Language Model whose primary goal is to summarize information in a concise, accurate, and contextually aware way.

You will receive a list of texts, with each entry corresponding to a different information source.

<your_task>
    - Summarize and synthesize the information, focusing on important details and accuracy.
    - Provide a section with a brief overview and a section with more details.
</your_task>

<guidelines>
    - Do not invent facts or details not included in the provided information.
    - Maintain important nuances. If multiple sources provide contradictory information, include the contradiction or uncertainty.
    - Present the answer clearly and in a helpful format.
</guidelines>

</system_prompt>`
	describeImagePrompt = "Please provide a detailed description of the given image."
)

// topicExamples are few-shot pairs for single topic extraction.
var topicExamples = [][2]string{
	{
		"## Mean Squared Error (MSE) Explained\n\nMean Squared Error (MSE) is a statistical measure used to evaluate the accuracy of an estimator or a predictive model. " +
			"It quantifies the average squared difference between the estimated values (predictions) and the actual values (observations).",
		"Mean Squared Error (MSE)",
	},
	{
		"## Alan Turing's Role in Computer Science\n\nAlan Turing is widely regarded as one of the founding figures of computer science, " +
			"with several key contributions that have had a lasting impact on the field.",
		"Alan Turing's Role in Computer Science",
	},
	{"Who won the 2024 Super Bowl?", "2024 Super Bowl winner"},
}

// topicResponse and topicsResponse are the structured outputs requested from
// the extractor model.
type topicResponse struct {
	Topic string `json:"topic"`
}

type topicsResponse struct {
	Topics []types.Topic `json:"topics"`
}

// searchPrompt builds the user message for a topic search.
func searchPrompt(topic string, known []string) string {
	prompt := "Tell me about " + strings.TrimSpace(topic) + " and topics adjacent to it."
	if len(known) > 0 {
		prompt += " I already know about the following topics: " + strings.Join(known, "; ") +
			". Focus on adjacent topics that add information distinct from these."
	}
	return prompt
}

func summaryPrompt(sources []string) string {
	return "Summarize these:\n\n" + strings.Join(sources, "\n\n")
}

// cleanTopics trims entries and drops those missing a name or information.
func cleanTopics(in []types.Topic) []types.Topic {
	out := make([]types.Topic, 0, len(in))
	for _, t := range in {
		t.Name = strings.TrimSpace(t.Name)
		t.Information = strings.TrimSpace(t.Information)
		if t.Name == "" || t.Information == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func parseTopic(raw string) (string, error) {
	var resp topicResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		return "", &types.ExtractionError{Op: "extract topic", Err: err}
	}
	topic := strings.TrimSpace(resp.Topic)
	if topic == "" {
		return "", &types.ExtractionError{Op: "extract topic", Err: types.ErrEmptyOutput}
	}
	return topic, nil
}

func parseTopics(raw string) ([]types.Topic, error) {
	var resp topicsResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		return nil, &types.ExtractionError{Op: "extract topics", Err: err}
	}
	topics := cleanTopics(resp.Topics)
	if len(topics) == 0 {
		return nil, &types.ExtractionError{Op: "extract topics", Err: types.ErrEmptyOutput}
	}
	return topics, nil
}

func parseSearchResponse(raw string) (*types.SearchResponse, error) {
	var resp types.SearchResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		return nil, &types.SearchError{Op: "decode answer", Err: err}
	}
	resp.Answer = strings.TrimSpace(resp.Answer)
	if resp.Answer == "" {
		return nil, &types.SearchError{Op: "decode answer", Err: types.ErrEmptyOutput}
	}
	return &resp, nil
}

// decodeModelJSON decodes a JSON object produced by a model. Markdown code
// fences are stripped and raw control characters inside strings are
// tolerated, as models often emit literal newlines in long answers.
func decodeModelJSON(raw string, v any) error {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return types.ErrEmptyOutput
	}
	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: %v", types.ErrInvalidJSON, err)
	}
	if err := json.Unmarshal([]byte(escapeControlChars(text)), v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidJSON, err)
	}
	return nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// escapeControlChars escapes control characters that appear inside JSON
// string literals.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch {
		case escaped:
			escaped = false
			b.WriteByte(c)
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(&b, `\u%04x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
