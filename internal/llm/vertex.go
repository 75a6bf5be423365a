package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const defaultVertexModel = "gemini-1.5-pro"

// Vertex generates text with a Gemini model on Vertex AI.
type Vertex struct {
	client *genai.Client
	model  string
}

// NewVertex creates a Vertex AI backend using application default credentials.
func NewVertex(ctx context.Context, projectID, region, model string) (*Vertex, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: projectID and region cannot be empty")
	}
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultVertexModel
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Vertex{client: client, model: model}, nil
}

// Complete implements Completer.
func (v *Vertex) Complete(ctx context.Context, req Request) (string, error) {
	model := v.client.GenerativeModel(v.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(req.Temperature),
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("vertex: generate content: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("vertex: empty completion")
	}
	return text, nil
}

// Close releases the underlying client.
func (v *Vertex) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var builder strings.Builder
	parts := 0
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			builder.WriteString(string(txt))
			parts++
		}
	}
	if parts > 1 {
		slog.Debug("Gemini response text parts concatenated", "parts", parts)
	}
	return cleanOutput(builder.String())
}
