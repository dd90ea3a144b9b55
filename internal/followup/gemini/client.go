package gemini

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"recruitai/interview/internal/followup"
	"recruitai/interview/internal/prompts"
)

// Client proposes follow-up questions with Gemini.
type Client struct {
	client  *genai.Client
	config  *Config
	prompts *prompts.Manager
}

func NewClient(config *Config) (*Client, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &followup.ProviderError{
			Provider: "gemini",
			Code:     followup.ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}

	pm, err := prompts.NewManager()
	if err != nil {
		return nil, &followup.ProviderError{
			Provider: "gemini",
			Code:     followup.ErrCodeInvalidInput,
			Message:  "Failed to load prompts",
			Err:      err,
		}
	}

	return &Client{client: client, config: config, prompts: pm}, nil
}

// GenerateFollowUp asks the model for at most one clarifying question. An
// empty result means the answer stands on its own.
func (c *Client) GenerateFollowUp(ctx context.Context, req followup.Request) (string, error) {
	prompt := c.prompts.FollowUpPrompt(req.Question, req.Criteria, req.Answer)

	result, err := c.client.Models.GenerateContent(
		ctx,
		c.config.Model,
		genai.Text(prompt),
		nil,
	)
	if err != nil {
		return "", &followup.ProviderError{
			Provider: "gemini",
			Code:     followup.ErrCodeServiceDown,
			Message:  "Failed to generate follow-up",
			Err:      err,
		}
	}
	if result == nil {
		return "", &followup.ProviderError{
			Provider: "gemini",
			Code:     followup.ErrCodeInvalidInput,
			Message:  "No response generated",
		}
	}

	text, err := result.Text()
	if err != nil {
		return "", &followup.ProviderError{
			Provider: "gemini",
			Code:     followup.ErrCodeInvalidInput,
			Message:  "Failed to extract response text",
			Err:      err,
		}
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "NONE") {
		return "", nil
	}
	// Models occasionally wrap the question in quotes.
	text = strings.Trim(text, "\"")
	return text, nil
}

func (c *Client) GetProviderName() string {
	return "gemini"
}
