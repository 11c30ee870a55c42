package openai

import (
	"context"
	"fmt"
	"strings"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model       string    `json:"model"`
	Input       []message `json:"input"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

func buildMessages(system, user string) []message {
	msgs := make([]message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, message{Role: "system", Content: system})
	}
	return append(msgs, message{Role: "user", Content: user})
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	text, err := c.generateOnce(ctx, system, user, c.temperatureFor(c.model))
	if err != nil && c.temperatureFor(c.model) != nil && isUnsupportedTemperatureParam(err) {
		c.noteNoTempModel(c.model)
		text, err = c.generateOnce(ctx, system, user, nil)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output text found in response")
	}
	return text, nil
}

func (c *client) generateOnce(ctx context.Context, system, user string, temp *float64) (string, error) {
	ep := endpoint{baseURL: c.baseURL, apiKey: c.apiKey}
	msgs := buildMessages(system, user)

	if c.style == APIStyleChatCompletions {
		var resp chatResponse
		req := chatRequest{Model: c.model, Messages: msgs, Temperature: temp}
		if err := c.do(ctx, ep, "/v1/chat/completions", c.model, req, &resp); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		if r := resp.Choices[0].Message.Refusal; r != "" {
			return "", fmt.Errorf("model refused: %s", r)
		}
		return resp.Choices[0].Message.Content, nil
	}

	var resp responsesResponse
	req := responsesRequest{Model: c.model, Input: msgs, Temperature: temp}
	if err := c.do(ctx, ep, "/v1/responses", c.model, req, &resp); err != nil {
		return "", err
	}
	return extractOutputText(resp)
}

func extractOutputText(resp responsesResponse) (string, error) {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			switch {
			case part.Type == "refusal" && part.Refusal != "":
				return "", fmt.Errorf("model refused: %s", part.Refusal)
			case part.Type == "output_text":
				out.WriteString(part.Text)
			}
		}
	}
	return out.String(), nil
}
