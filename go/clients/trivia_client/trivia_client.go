// Package trivia_client generates multiple-choice quiz questions through a
// chat-completions API.
package trivia_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/encorequiz/encore/go/clients"
)

type TriviaClient struct {
	*clients.BaseClient
}

func NewTriviaClient(apiKey string) *TriviaClient {
	client := &TriviaClient{
		BaseClient: clients.NewBaseClient(BaseURL),
	}

	client.SetHeader(AuthorizationHeader, "Bearer "+apiKey)
	client.SetHeader(ContentTypeHeader, ContentTypeJSON)

	return client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateQuestion asks the model for a country-specific multiple-choice
// question. The returned text ends with a line naming the correct answer,
// which callers use as the answer key.
func (c *TriviaClient) GenerateQuestion(ctx context.Context, topic, subtopic, country string) (string, error) {
	prompt := fmt.Sprintf("Create a multiple-choice quiz question about %s in %s. ", topic, country)
	if subtopic != "" {
		prompt += fmt.Sprintf("Specifically, focus on %s. ", subtopic)
	}
	prompt += "Provide 4 answer choices labeled A, B, C, and D. Clearly indicate the correct answer at the end."

	reqBody, err := json.Marshal(chatRequest{
		Model: Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a quiz generator that creates country-specific questions."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	respBody, err := c.Post(ctx, ChatCompletionsEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}

	question := strings.TrimSpace(resp.Choices[0].Message.Content)
	if question == "" {
		return "", fmt.Errorf("chat response contained an empty question")
	}
	return question, nil
}

// AnswerKey extracts the correctness key from a generated question: the last
// non-empty line, which names the correct answer.
func AnswerKey(question string) string {
	lines := strings.Split(strings.TrimSpace(question), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
