package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const scriptPrompt = `
Create a 30-second YouTube Short script about a fascinating random fact (Space, History, or Nature).
Return ONLY valid JSON with this format:
{
    "topic": "The topic title",
    "script": "The full voiceover text (approx 50-60 words).",
    "keywords": ["query1", "query2", "query3"],
    "title": "Clickbait Title for YouTube",
    "description": "Video description with hashtags"
}

The response must validate against this JSON schema:
%s
`

type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiClient(ctx context.Context, cfg PipelineConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.GeminiModel)
	model.SetTemperature(cfg.Temperature)
	model.ResponseMIMEType = "application/json"

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiClient) Close() {
	g.client.Close()
}

// GenerateScriptPackage asks Gemini for a fresh short script and parses it.
// All failures are reported as ErrScriptGeneration.
func (g *GeminiClient) GenerateScriptPackage(ctx context.Context) (*ScriptPackage, error) {
	prompt := fmt.Sprintf(scriptPrompt, ScriptPromptSchema())

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini generation error: %v", ErrScriptGeneration, err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptGeneration, err)
	}

	return ParseScriptPackage(text)
}

func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	return sb.String(), nil
}
