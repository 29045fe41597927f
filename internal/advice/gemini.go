package advice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

const instructions = "You are a personal finance assistant.\n" +
	"You receive a JSON object with the user's transactions (signed amounts: positive is income, negative is expense) " +
	"and investments (current value and percent change against the average purchase price).\n" +
	"Write a short analysis in plain text: spending patterns, the largest expense categories, " +
	"savings capacity and one or two concrete suggestions. Do not use Markdown.\n\n"

var ErrEmptyAnalysis = errors.New("empty response from model")

// generator is the slice of the genai client the advisor needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiAdvisor struct {
	models generator
	model  string
}

var _ Advisor = (*GeminiAdvisor)(nil)

// NewGeminiAdvisor builds a client for the Gemini API. An empty apiKey lets
// the SDK fall back to GOOGLE_API_KEY / Vertex environment settings.
func NewGeminiAdvisor(ctx context.Context, apiKey, model string) (*GeminiAdvisor, error) {
	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiAdvisor{models: client.Models, model: model}, nil
}

func (a *GeminiAdvisor) Analyze(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal advice request: %w", err)
	}
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: instructions + string(payload)},
			},
		},
	}
	resp, err := a.models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return Result{}, fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Result{}, ErrEmptyAnalysis
	}
	return Result{Analysis: text}, nil
}
